package subtitles_test

import (
	"context"
	"errors"
	"testing"

	"subtitle-history-api/internal/application/subtitles"
	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	"subtitle-history-api/internal/testsupport"
	apperrors "subtitle-history-api/pkg/errors"
)

type bulkFixture struct {
	env     *testsupport.SubtitleEnv
	langs   []*entity.SubtitleLanguage
	en2     *entity.SubtitleVersion
	frPriv  *entity.SubtitleVersion
	ptEmpty *entity.SubtitleLanguage
}

// newBulkFixture en: v1 public, v2 public；fr: v1 private；pt: 无版本
func newBulkFixture(t *testing.T) *bulkFixture {
	t.Helper()

	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	pt := testsupport.MustLanguage(t, sess, "vid1", "pt")

	en1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	en2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	frPriv := testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{
		Visibility: entity.VisibilityPrivate,
		Parents:    []*entity.SubtitleVersion{en1},
	})

	return &bulkFixture{
		env:     env,
		langs:   []*entity.SubtitleLanguage{en, fr, pt},
		en2:     en2,
		frPriv:  frPriv,
		ptEmpty: pt,
	}
}

func TestFetchAndJoinPrimesTipCache(t *testing.T) {
	ctx := context.Background()
	fx := newBulkFixture(t)
	sess := fx.env.Service.NewSession()

	before := fx.env.Store.Queries()
	tips, err := sess.FetchAndJoin(ctx, fx.langs, subtitles.JoinOptions{PublicTip: true, ExtantTip: true})
	if err != nil {
		t.Fatalf("FetchAndJoin: %v", err)
	}
	if got := fx.env.Store.Queries() - before; got != 2 {
		t.Fatalf("FetchAndJoin issued %d queries, want one per class", got)
	}

	en, fr, pt := fx.langs[0], fx.langs[1], fx.langs[2]
	if tips[en.ID].Public == nil || tips[en.ID].Public.ID != fx.en2.ID {
		t.Fatalf("en public tip = %+v", tips[en.ID].Public)
	}
	if tips[fr.ID].Public != nil {
		t.Fatalf("fr has no public version, got %+v", tips[fr.ID].Public)
	}
	if tips[fr.ID].Extant == nil || tips[fr.ID].Extant.ID != fx.frPriv.ID {
		t.Fatalf("fr extant tip = %+v", tips[fr.ID].Extant)
	}
	if tips[pt.ID].Public != nil || tips[pt.ID].Extant != nil {
		t.Fatalf("pt should have no tips: %+v", tips[pt.ID])
	}

	before = fx.env.Store.Queries()
	for _, lang := range fx.langs {
		for _, class := range []entity.Class{entity.ClassPublic, entity.ClassExtant} {
			if _, err := sess.GetTip(ctx, lang, class); err != nil {
				t.Fatalf("GetTip: %v", err)
			}
		}
	}
	if fx.env.Store.Queries() != before {
		t.Fatalf("GetTip after FetchAndJoin queried the store %d times", fx.env.Store.Queries()-before)
	}
}

func TestFetchForLanguagesGroupsAndDerivesTips(t *testing.T) {
	ctx := context.Background()
	fx := newBulkFixture(t)
	sess := fx.env.Service.NewSession()

	before := fx.env.Store.Queries()
	grouped, err := sess.FetchForLanguages(ctx, fx.langs, subtitles.FetchOptions{
		Class:       entity.ClassFull,
		Order:       repository.SortOrderAsc,
		WithParents: true,
	})
	if err != nil {
		t.Fatalf("FetchForLanguages: %v", err)
	}
	if got := fx.env.Store.Queries() - before; got != 1 {
		t.Fatalf("FetchForLanguages issued %d queries, want 1", got)
	}

	en, fr, pt := fx.langs[0], fx.langs[1], fx.langs[2]
	if n := len(grouped[en.ID]); n != 2 {
		t.Fatalf("en versions = %d, want 2", n)
	}
	if grouped[en.ID][0].VersionNumber != 1 || grouped[en.ID][1].VersionNumber != 2 {
		t.Fatalf("en versions not ascending")
	}
	if len(grouped[en.ID][1].ParentIDs) != 1 || grouped[en.ID][1].ParentIDs[0] != grouped[en.ID][0].ID {
		t.Fatalf("en.v2 parents not prefetched: %v", grouped[en.ID][1].ParentIDs)
	}
	if n := len(grouped[pt.ID]); n != 0 {
		t.Fatalf("pt versions = %d, want 0", n)
	}

	before = fx.env.Store.Queries()
	checks := []struct {
		lang  *entity.SubtitleLanguage
		class entity.Class
		want  *entity.SubtitleVersion
	}{
		{en, entity.ClassFull, fx.en2},
		{en, entity.ClassExtant, fx.en2},
		{en, entity.ClassPublic, fx.en2},
		{fr, entity.ClassExtant, fx.frPriv},
		{fr, entity.ClassPublic, nil},
		{pt, entity.ClassFull, nil},
	}
	for _, c := range checks {
		tip, err := sess.GetTip(ctx, c.lang, c.class)
		if err != nil {
			t.Fatalf("GetTip: %v", err)
		}
		switch {
		case c.want == nil && tip != nil:
			t.Fatalf("%s %s tip = %+v, want none", c.lang.LanguageCode, c.class, tip)
		case c.want != nil && (tip == nil || tip.ID != c.want.ID):
			t.Fatalf("%s %s tip = %+v, want %d", c.lang.LanguageCode, c.class, tip, c.want.ID)
		}
	}
	if fx.env.Store.Queries() != before {
		t.Fatalf("derived tips were not cached")
	}
}

func TestFetchForLanguagesNarrowClassDoesNotCacheWiderClass(t *testing.T) {
	ctx := context.Background()
	fx := newBulkFixture(t)
	sess := fx.env.Service.NewSession()

	if _, err := sess.FetchForLanguages(ctx, fx.langs, subtitles.FetchOptions{Class: entity.ClassPublic}); err != nil {
		t.Fatalf("FetchForLanguages: %v", err)
	}
	fr := fx.langs[1]
	before := fx.env.Store.Queries()
	tip, err := sess.GetTip(ctx, fr, entity.ClassExtant)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip == nil || tip.ID != fx.frPriv.ID {
		t.Fatalf("fr extant tip = %+v", tip)
	}
	if fx.env.Store.Queries() == before {
		t.Fatal("extant tip must be resolved from the store after a public-only fetch")
	}
}

func TestBulkHasPublicVersion(t *testing.T) {
	ctx := context.Background()
	fx := newBulkFixture(t)
	sess := fx.env.Service.NewSession()

	before := fx.env.Store.Queries()
	found, err := sess.BulkHasPublicVersion(ctx, fx.langs)
	if err != nil {
		t.Fatalf("BulkHasPublicVersion: %v", err)
	}
	if got := fx.env.Store.Queries() - before; got != 1 {
		t.Fatalf("BulkHasPublicVersion issued %d queries, want 1", got)
	}
	en, fr, pt := fx.langs[0], fx.langs[1], fx.langs[2]
	if !found[en.ID] || found[fr.ID] || found[pt.ID] {
		t.Fatalf("found = %v", found)
	}

	// PUBLIC tip 已缓存时直接使用缓存
	if _, err := sess.FetchAndJoin(ctx, fx.langs, subtitles.JoinOptions{PublicTip: true}); err != nil {
		t.Fatalf("FetchAndJoin: %v", err)
	}
	before = fx.env.Store.Queries()
	again, err := sess.BulkHasPublicVersion(ctx, fx.langs)
	if err != nil {
		t.Fatalf("BulkHasPublicVersion: %v", err)
	}
	if fx.env.Store.Queries() != before {
		t.Fatal("cached public tips should answer without a query")
	}
	if !again[en.ID] || again[fr.ID] || again[pt.ID] {
		t.Fatalf("cached answer = %v", again)
	}
}

func TestBulkOperationsValidateArguments(t *testing.T) {
	ctx := context.Background()
	fx := newBulkFixture(t)
	sess := fx.env.Service.NewSession()

	bad := [][]*entity.SubtitleLanguage{
		{fx.langs[0], nil},
		{entity.NewSubtitleLanguage("vid1", "de")},
	}
	for _, langs := range bad {
		if _, err := sess.FetchAndJoin(ctx, langs, subtitles.JoinOptions{PublicTip: true}); !errors.Is(err, apperrors.ErrInvalidParam) {
			t.Fatalf("FetchAndJoin error = %v, want invalid param", err)
		}
		if _, err := sess.FetchForLanguages(ctx, langs, subtitles.FetchOptions{}); !errors.Is(err, apperrors.ErrInvalidParam) {
			t.Fatalf("FetchForLanguages error = %v, want invalid param", err)
		}
		if _, err := sess.BulkHasPublicVersion(ctx, langs); !errors.Is(err, apperrors.ErrInvalidParam) {
			t.Fatalf("BulkHasPublicVersion error = %v, want invalid param", err)
		}
	}

	before := fx.env.Store.Queries()
	if out, err := sess.FetchAndJoin(ctx, nil, subtitles.JoinOptions{PublicTip: true}); err != nil || len(out) != 0 {
		t.Fatalf("FetchAndJoin(nil) = %v, %v", out, err)
	}
	if out, err := sess.FetchForLanguages(ctx, nil, subtitles.FetchOptions{}); err != nil || len(out) != 0 {
		t.Fatalf("FetchForLanguages(nil) = %v, %v", out, err)
	}
	if out, err := sess.BulkHasPublicVersion(ctx, nil); err != nil || len(out) != 0 {
		t.Fatalf("BulkHasPublicVersion(nil) = %v, %v", out, err)
	}
	if fx.env.Store.Queries() != before {
		t.Fatal("empty input must not query the store")
	}
}
