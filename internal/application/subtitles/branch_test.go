package subtitles_test

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"subtitle-history-api/internal/application/subtitles"
	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	"subtitle-history-api/internal/testsupport"
	apperrors "subtitle-history-api/pkg/errors"
)

func TestAddVersionNumbersAndImplicitParent(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{Subtitles: testsupport.Lines("hello")})
	v2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{Subtitles: testsupport.Lines("hello", "world")})
	v3 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	for i, v := range []*entity.SubtitleVersion{v1, v2, v3} {
		if v.VersionNumber != i+1 {
			t.Fatalf("version %d: got number %d", i, v.VersionNumber)
		}
		if v.LanguageCode != "en" || v.VideoID != "vid1" || v.SubtitleLanguageID != en.ID {
			t.Fatalf("denormalized fields not copied: %+v", v)
		}
	}
	if len(v1.ParentIDs) != 0 {
		t.Fatalf("first version should have no parents, got %v", v1.ParentIDs)
	}
	if !reflect.DeepEqual(v2.ParentIDs, []int64{v1.ID}) {
		t.Fatalf("v2 parents = %v, want [%d]", v2.ParentIDs, v1.ID)
	}
	if got := v3.GetLineage(); !reflect.DeepEqual(got, entity.Lineage{"en": 2}) {
		t.Fatalf("v3 lineage = %v", got)
	}
	if v1.Visibility != entity.VisibilityPublic {
		t.Fatalf("default visibility = %q, want public", v1.Visibility)
	}
}

func TestScenarioPublicTipAfterDelete(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	v2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip == nil || tip.ID != v2.ID {
		t.Fatalf("public tip = %+v, want v2", tip)
	}

	if err := sess.Unpublish(ctx, en, v2, true); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}

	tip, err = sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip == nil || tip.ID != v1.ID {
		t.Fatalf("public tip after delete = %+v, want v1", tip)
	}

	full, err := sess.GetTip(ctx, en, entity.ClassFull)
	if err != nil {
		t.Fatalf("GetTip full: %v", err)
	}
	if full == nil || full.ID != v2.ID || !full.IsDeleted() {
		t.Fatalf("full tip = %+v, want deleted v2", full)
	}

	extant, err := sess.GetTip(ctx, en, entity.ClassExtant)
	if err != nil {
		t.Fatalf("GetTip extant: %v", err)
	}
	if extant == nil || extant.ID != v1.ID {
		t.Fatalf("extant tip = %+v, want v1", extant)
	}

	for _, e := range env.Sink.Events() {
		if e.Type == entity.EventSubtitlesDeleted {
			t.Fatalf("deleted event emitted although v1 is still public")
		}
	}
}

func TestScenarioOverridePublicWinsOverPrivateVisibility(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{
		Visibility:         entity.VisibilityPrivate,
		VisibilityOverride: entity.OverridePublic,
	})

	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip == nil || tip.ID != v1.ID {
		t.Fatalf("public tip = %+v, want v1", tip)
	}
}

func TestFullTipIsMaximumVersionNumber(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	tip, err := sess.GetTip(ctx, en, entity.ClassFull)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip != nil {
		t.Fatalf("empty branch has tip %+v", tip)
	}

	inputs := []subtitles.NewVersionInput{
		{Visibility: entity.VisibilityPublic},
		{Visibility: entity.VisibilityPrivate},
		{Visibility: entity.VisibilityPublic, VisibilityOverride: entity.OverrideDeleted},
	}
	for _, in := range inputs {
		testsupport.MustAddVersion(t, sess, en, in)
		tip, err := sess.GetTip(ctx, en, entity.ClassFull)
		if err != nil {
			t.Fatalf("GetTip: %v", err)
		}
		versions, err := sess.GetVersions(ctx, en, entity.ClassFull, repository.SortOrderAsc)
		if err != nil {
			t.Fatalf("GetVersions: %v", err)
		}
		max := 0
		for _, v := range versions {
			if v.VersionNumber > max {
				max = v.VersionNumber
			}
		}
		if tip.VersionNumber != max {
			t.Fatalf("full tip number = %d, max = %d", tip.VersionNumber, max)
		}
	}
}

func TestGetTipSecondCallDoesNotQuery(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	for _, class := range []entity.Class{entity.ClassPublic, entity.ClassExtant, entity.ClassFull} {
		first, err := sess.GetTip(ctx, en, class)
		if err != nil {
			t.Fatalf("GetTip(%s): %v", class, err)
		}
		before := env.Store.Queries()
		second, err := sess.GetTip(ctx, en, class)
		if err != nil {
			t.Fatalf("GetTip(%s): %v", class, err)
		}
		if env.Store.Queries() != before {
			t.Fatalf("second GetTip(%s) queried the store", class)
		}
		if first != second {
			t.Fatalf("GetTip(%s) returned different versions", class)
		}
	}
}

func TestGetTipCachesAbsence(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	if _, err := sess.GetTip(ctx, en, entity.ClassPublic); err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	before := env.Store.Queries()
	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip != nil || env.Store.Queries() != before {
		t.Fatalf("absent tip not cached: tip=%v queries %d -> %d", tip, before, env.Store.Queries())
	}
}

func TestAddVersionInvalidatesTipCache(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	if _, err := sess.GetTip(ctx, en, entity.ClassPublic); err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	v2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip.ID != v2.ID {
		t.Fatalf("stale tip %d after add, want %d", tip.VersionNumber, v2.VersionNumber)
	}
}

func TestScenarioLineageAcrossLanguages(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	pt := testsupport.MustLanguage(t, sess, "vid1", "pt")

	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	en2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	fr1 := testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en2}})
	if got := fr1.GetLineage(); !reflect.DeepEqual(got, entity.Lineage{"en": 2}) {
		t.Fatalf("fr.v1 lineage = %v, want {en:2}", got)
	}

	pt1 := testsupport.MustAddVersion(t, sess, pt, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{fr1}})
	if got := pt1.GetLineage(); !reflect.DeepEqual(got, entity.Lineage{"en": 2, "fr": 1}) {
		t.Fatalf("pt.v1 lineage = %v, want {en:2 fr:1}", got)
	}
}

func TestAddVersionRejectsInvalidParents(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	pt := testsupport.MustLanguage(t, sess, "vid1", "pt")
	other := testsupport.MustLanguage(t, sess, "vid2", "en")

	en1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	en2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	en3 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	foreign := testsupport.MustAddVersion(t, sess, other, subtitles.NewVersionInput{})
	fr1 := testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en2}})
	testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en3}})

	tests := []struct {
		name    string
		branch  *entity.SubtitleLanguage
		parents []*entity.SubtitleVersion
	}{
		{name: "two parents from the same language", branch: fr, parents: []*entity.SubtitleVersion{en1, en2}},
		{name: "lineage regression", branch: fr, parents: []*entity.SubtitleVersion{en1}},
		{name: "parent older than sibling parent lineage", branch: pt, parents: []*entity.SubtitleVersion{fr1, en1}},
		{name: "parent from another video", branch: fr, parents: []*entity.SubtitleVersion{foreign}},
		{name: "nil parent", branch: fr, parents: []*entity.SubtitleVersion{nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := sess.GetVersions(ctx, tt.branch, entity.ClassFull, repository.SortOrderAsc)
			if err != nil {
				t.Fatalf("GetVersions: %v", err)
			}
			_, err = sess.AddVersion(ctx, tt.branch, subtitles.NewVersionInput{Parents: tt.parents})
			if !errors.Is(err, apperrors.ErrValidationFailed) {
				t.Fatalf("AddVersion error = %v, want validation failure", err)
			}
			after, err := sess.GetVersions(ctx, tt.branch, entity.ClassFull, repository.SortOrderAsc)
			if err != nil {
				t.Fatalf("GetVersions: %v", err)
			}
			if len(after) != len(before) {
				t.Fatalf("rejected version was persisted: %d versions, want %d", len(after), len(before))
			}
		})
	}

	// 与父版本谱系一致的组合可以创建
	v := testsupport.MustAddVersion(t, sess, pt, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{fr1, en2}})
	if want := (entity.Lineage{"en": 2, "fr": 1}); !reflect.DeepEqual(v.Lineage, want) {
		t.Fatalf("lineage = %v, want %v", v.Lineage, want)
	}
}

func TestAddVersionRejectsRollbackOrdering(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	target := 2
	_, err := sess.AddVersion(context.Background(), en, subtitles.NewVersionInput{RollbackOf: &target})
	if !errors.Is(err, apperrors.ErrValidationFailed) {
		t.Fatalf("AddVersion error = %v, want validation failure", err)
	}
}

func TestAddVersionRejectsUnsavedLanguage(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()

	_, err := sess.AddVersion(context.Background(), entity.NewSubtitleLanguage("vid1", "en"), subtitles.NewVersionInput{})
	if !errors.Is(err, apperrors.ErrInvalidParam) {
		t.Fatalf("AddVersion error = %v, want invalid param", err)
	}
}

func TestConcurrentAddVersionAllocatesDistinctNumbers(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	en := testsupport.MustLanguage(t, env.Service.NewSession(), "vid1", "en")

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess := env.Service.NewSession()
			v, err := sess.AddVersion(context.Background(), en, subtitles.NewVersionInput{})
			if err != nil {
				t.Errorf("AddVersion: %v", err)
				return
			}
			mu.Lock()
			numbers = append(numbers, v.VersionNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Ints(numbers)
	for i, n := range numbers {
		if n != i+1 {
			t.Fatalf("version numbers = %v, want 1..%d", numbers, writers)
		}
	}
}

func TestRollbackCopiesContent(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{Subtitles: testsupport.Lines("first"), Title: "One"})
	v2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{Subtitles: testsupport.Lines("second"), Title: "Two"})

	v3, err := sess.Rollback(ctx, en, 1, "alice")
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if v3.VersionNumber != 3 || v3.RollbackOfNum == nil || *v3.RollbackOfNum != 1 {
		t.Fatalf("rollback version = %+v", v3)
	}
	if v3.Title != "One" || len(v3.Subtitles) != 1 || v3.Subtitles[0].Text != "first" {
		t.Fatalf("rollback content not copied: %+v", v3)
	}
	if !reflect.DeepEqual(v3.ParentIDs, []int64{v2.ID}) {
		t.Fatalf("rollback parents = %v, want [%d]", v3.ParentIDs, v2.ID)
	}
	if v3.Origin != entity.OriginRollback || v3.AuthorID != "alice" {
		t.Fatalf("rollback origin/author = %q/%q", v3.Origin, v3.AuthorID)
	}

	if _, err := sess.Rollback(ctx, en, 9, "alice"); !errors.Is(err, apperrors.ErrVersionNotFound) {
		t.Fatalf("Rollback to missing version error = %v", err)
	}
}

func TestScenarioWritelockExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t, subtitles.WithWritelockTTL(30*time.Second))
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	if !sess.CanWritelock(en, "alice") {
		t.Fatal("unlocked branch should be lockable")
	}
	if err := sess.Writelock(ctx, en, "alice"); err != nil {
		t.Fatalf("Writelock: %v", err)
	}

	stored, err := sess.GetLanguage(ctx, "vid1", "en")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if stored.WritelockOwner() != "alice" {
		t.Fatalf("persisted owner = %q", stored.WritelockOwner())
	}

	if sess.CanWritelock(stored, "bob") {
		t.Fatal("bob can lock while alice holds a fresh lock")
	}
	if !sess.CanWritelock(stored, "alice") {
		t.Fatal("holder should be able to re-lock")
	}
	if !sess.IsWritelocked(stored) {
		t.Fatal("branch should report locked")
	}

	env.Clock.Advance(31 * time.Second)
	if !sess.CanWritelock(stored, "bob") {
		t.Fatal("bob cannot lock after TTL elapsed")
	}

	if err := sess.Writelock(ctx, en, "alice"); err != nil {
		t.Fatalf("Writelock: %v", err)
	}
	if err := sess.ReleaseWritelock(ctx, en); err != nil {
		t.Fatalf("ReleaseWritelock: %v", err)
	}
	stored, err = sess.GetLanguage(ctx, "vid1", "en")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if stored.WritelockOwnerID != nil || stored.WritelockTime != nil || !sess.CanWritelock(stored, "bob") {
		t.Fatalf("release did not clear lock: %+v", stored)
	}
}

func TestPublishKeepsOverride(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{
		Visibility:         entity.VisibilityPrivate,
		VisibilityOverride: entity.OverridePrivate,
	})
	if err := sess.Publish(ctx, v1); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip != nil {
		t.Fatalf("private override must still hide the version, got %+v", tip)
	}

	stored, err := sess.GetVersion(ctx, en, 1, entity.ClassFull)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if stored.Visibility != entity.VisibilityPublic || stored.VisibilityOverride != entity.OverridePrivate {
		t.Fatalf("stored visibility = %q/%q", stored.Visibility, stored.VisibilityOverride)
	}
}

func TestPublishStaleCopyKeepsConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	editor := env.Service.NewSession()
	en := testsupport.MustLanguage(t, editor, "vid1", "en")
	testsupport.MustAddVersion(t, editor, en, subtitles.NewVersionInput{Visibility: entity.VisibilityPrivate})

	stale, err := editor.GetVersion(ctx, en, 1, entity.ClassFull)
	if err != nil || stale == nil {
		t.Fatalf("GetVersion = %+v, %v", stale, err)
	}

	moderator := env.Service.NewSession()
	current, err := moderator.GetVersion(ctx, en, 1, entity.ClassFull)
	if err != nil || current == nil {
		t.Fatalf("GetVersion = %+v, %v", current, err)
	}
	if err := moderator.Unpublish(ctx, en, current, true); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}

	if err := editor.Publish(ctx, stale); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if stale.VisibilityOverride != entity.OverrideDeleted {
		t.Fatalf("publish should refresh override, got %q", stale.VisibilityOverride)
	}

	reader := env.Service.NewSession()
	stored, err := reader.GetVersion(ctx, en, 1, entity.ClassFull)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if stored.Visibility != entity.VisibilityPublic || !stored.IsDeleted() {
		t.Fatalf("stored visibility = %q/%q, want public/deleted", stored.Visibility, stored.VisibilityOverride)
	}
	tip, err := reader.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if tip != nil {
		t.Fatalf("deleted version resurfaced as public tip: %+v", tip)
	}
}

func TestUnpublishLastPublicVersionEmitsDeleted(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	if err := sess.Unpublish(ctx, en, v1, false); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}

	want := []entity.SubtitleEventType{entity.EventSubtitlesAdded, entity.EventSubtitlesDeleted}
	if got := env.Sink.Types(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	extant, err := sess.GetTip(ctx, en, entity.ClassExtant)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if extant == nil || !extant.IsPrivate() {
		t.Fatalf("private version should remain extant, got %+v", extant)
	}
}

func TestUnpublishNonTipDoesNotEmit(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	v1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	if err := sess.Unpublish(ctx, en, v1, true); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	for _, typ := range env.Sink.Types() {
		if typ == entity.EventSubtitlesDeleted {
			t.Fatal("unexpected deleted event")
		}
	}
}

func TestNukeMarksEverythingDeleted(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	v2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	if _, err := sess.GetTip(ctx, en, entity.ClassPublic); err != nil {
		t.Fatalf("GetTip: %v", err)
	}

	if err := sess.Nuke(ctx, en); err != nil {
		t.Fatalf("Nuke: %v", err)
	}

	extant, err := sess.GetTip(ctx, en, entity.ClassExtant)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if extant != nil {
		t.Fatalf("extant tip after nuke = %+v", extant)
	}
	full, err := sess.GetTip(ctx, en, entity.ClassFull)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if full == nil || full.ID != v2.ID || !full.IsDeleted() {
		t.Fatalf("full tip after nuke = %+v", full)
	}

	types := env.Sink.Types()
	if types[len(types)-1] != entity.EventSubtitlesDeleted {
		t.Fatalf("last event = %v, want deleted", types[len(types)-1])
	}
}

func TestMarkCompleteEmitsCompletion(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	if err := sess.MarkComplete(ctx, en); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := sess.MarkIncomplete(ctx, en); err != nil {
		t.Fatalf("MarkIncomplete: %v", err)
	}

	events := env.Sink.Events()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != entity.EventLanguageCompleted || !events[0].Complete {
		t.Fatalf("first event = %+v", events[0])
	}
	if events[1].Type != entity.EventLanguageCompleted || events[1].Complete {
		t.Fatalf("second event = %+v", events[1])
	}

	stored, err := sess.GetLanguage(ctx, "vid1", "en")
	if err != nil {
		t.Fatalf("GetLanguage: %v", err)
	}
	if stored.IsComplete {
		t.Fatal("language should be incomplete")
	}
}

func TestChangeLanguageCode(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	en1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en1}})
	if _, err := sess.GetTip(ctx, en, entity.ClassPublic); err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if _, err := sess.GetTip(ctx, fr, entity.ClassPublic); err != nil {
		t.Fatalf("GetTip: %v", err)
	}

	if err := sess.ChangeLanguageCode(ctx, en, "fr"); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("ChangeLanguageCode to existing code error = %v, want conflict", err)
	}

	if err := sess.ChangeLanguageCode(ctx, en, "en-GB"); err != nil {
		t.Fatalf("ChangeLanguageCode: %v", err)
	}
	tip, err := sess.GetTip(ctx, en, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip after rename: %v", err)
	}
	if tip == nil || tip.LanguageCode != "en-GB" {
		t.Fatalf("tip after rename = %+v", tip)
	}

	frTip, err := sess.GetTip(ctx, fr, entity.ClassPublic)
	if err != nil {
		t.Fatalf("GetTip fr: %v", err)
	}
	if want := (entity.Lineage{"en-GB": 1}); !reflect.DeepEqual(frTip.Lineage, want) {
		t.Fatalf("translation lineage after rename = %v, want %v", frTip.Lineage, want)
	}

	en2 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	fr2 := testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en2}})
	if want := (entity.Lineage{"en-GB": 2, "fr": 1}); !reflect.DeepEqual(fr2.Lineage, want) {
		t.Fatalf("lineage = %v, want %v without stale keys", fr2.Lineage, want)
	}
}

func TestConsistencyViolationIsReported(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	enV1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})

	if err := sess.Unpublish(ctx, fr, enV1, true); !apperrors.HasCode(err, apperrors.CodeConsistencyViolated) {
		t.Fatalf("Unpublish with wrong branch error = %v, want consistency violation", err)
	}

	stale := *en
	stale.LanguageCode = "de"
	if _, err := sess.GetTip(ctx, &stale, entity.ClassFull); !apperrors.HasCode(err, apperrors.CodeConsistencyViolated) {
		t.Fatalf("GetTip with mismatched branch error = %v, want consistency violation", err)
	}
}

func TestTranslationSourceAndDisplayTitle(t *testing.T) {
	ctx := context.Background()
	env := testsupport.NewSubtitleEnv(t)
	env.Store.PutVideo(entity.Video{ID: "vid1", Title: "Video Title", PrimaryLanguageCode: "en"})
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")
	fr := testsupport.MustLanguage(t, sess, "vid1", "fr")
	pt := testsupport.MustLanguage(t, sess, "vid1", "pt")

	en1 := testsupport.MustAddVersion(t, sess, en, subtitles.NewVersionInput{})
	fr1 := testsupport.MustAddVersion(t, sess, fr, subtitles.NewVersionInput{Parents: []*entity.SubtitleVersion{en1}})
	pt1 := testsupport.MustAddVersion(t, sess, pt, subtitles.NewVersionInput{
		Parents: []*entity.SubtitleVersion{en1, fr1},
		Title:   "Título",
	})

	source, err := sess.TranslationSource(ctx, pt1)
	if err != nil {
		t.Fatalf("TranslationSource: %v", err)
	}
	if source == nil || source.ID != fr1.ID {
		t.Fatalf("translation source = %+v, want fr.v1", source)
	}
	source, err = sess.TranslationSource(ctx, en1)
	if err != nil {
		t.Fatalf("TranslationSource: %v", err)
	}
	if source != nil {
		t.Fatalf("original version has translation source %+v", source)
	}

	tests := []struct {
		name    string
		version *entity.SubtitleVersion
		want    string
	}{
		{name: "primary language falls back to video title", version: en1, want: "Video Title"},
		{name: "other language without title", version: fr1, want: ""},
		{name: "own title", version: pt1, want: "Título"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sess.DisplayTitle(ctx, tt.version)
			if err != nil {
				t.Fatalf("DisplayTitle: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DisplayTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSinkFailureDoesNotFailWrite(t *testing.T) {
	env := testsupport.NewSubtitleEnv(t)
	env.Sink.Err = errors.New("stream unavailable")
	sess := env.Service.NewSession()
	en := testsupport.MustLanguage(t, sess, "vid1", "en")

	if _, err := sess.AddVersion(context.Background(), en, subtitles.NewVersionInput{}); err != nil {
		t.Fatalf("AddVersion with failing sink: %v", err)
	}
	if len(env.Sink.Events()) != 1 {
		t.Fatalf("sink should still have been called once")
	}
}
