package entity_test

import (
	"reflect"
	"testing"
	"time"

	"subtitle-history-api/internal/domain/entity"
)

func version(id int64, lang string, number int, lineage entity.Lineage) *entity.SubtitleVersion {
	return &entity.SubtitleVersion{
		ID:            id,
		LanguageCode:  lang,
		VersionNumber: number,
		Lineage:       lineage,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC),
	}
}

// expectedLineage 逐语言取 max(父版本自身号 | 父版本谱系中的值)
func expectedLineage(parents []*entity.SubtitleVersion) entity.Lineage {
	langs := map[string]bool{}
	for _, p := range parents {
		langs[p.LanguageCode] = true
		for l := range p.Lineage {
			langs[l] = true
		}
	}
	out := entity.Lineage{}
	for l := range langs {
		best, found := 0, false
		for _, p := range parents {
			var candidate int
			var ok bool
			if p.LanguageCode == l {
				candidate, ok = p.VersionNumber, true
			} else {
				candidate, ok = p.Lineage[l]
			}
			if ok && (!found || candidate > best) {
				best, found = candidate, true
			}
		}
		out[l] = best
	}
	return out
}

func TestMergeLineage(t *testing.T) {
	tests := []struct {
		name    string
		parents []*entity.SubtitleVersion
		want    entity.Lineage
	}{
		{name: "no parents", parents: nil, want: entity.Lineage{}},
		{
			name:    "single translation parent",
			parents: []*entity.SubtitleVersion{version(2, "en", 2, entity.Lineage{"en": 1})},
			want:    entity.Lineage{"en": 2},
		},
		{
			name:    "chain keeps grandparent",
			parents: []*entity.SubtitleVersion{version(3, "fr", 1, entity.Lineage{"en": 2})},
			want:    entity.Lineage{"en": 2, "fr": 1},
		},
		{
			name: "parent lineage can exceed sibling's own number",
			parents: []*entity.SubtitleVersion{
				version(4, "en", 1, nil),
				version(5, "fr", 3, entity.Lineage{"en": 4, "de": 2}),
			},
			want: entity.Lineage{"en": 4, "fr": 3, "de": 2},
		},
		{
			name: "own number wins over smaller lineage entry",
			parents: []*entity.SubtitleVersion{
				version(6, "en", 5, nil),
				version(7, "fr", 1, entity.Lineage{"en": 2}),
			},
			want: entity.Lineage{"en": 5, "fr": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := entity.MergeLineage(tt.parents)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("MergeLineage = %v, want %v", got, tt.want)
			}
			if law := expectedLineage(tt.parents); !reflect.DeepEqual(got, law) {
				t.Fatalf("MergeLineage = %v, lineage law gives %v", got, law)
			}
		})
	}
}

func TestMergeLineageDoesNotAliasParents(t *testing.T) {
	parent := version(1, "en", 1, entity.Lineage{"de": 1})
	got := entity.MergeLineage([]*entity.SubtitleVersion{parent})
	got["de"] = 99
	if parent.Lineage["de"] != 1 {
		t.Fatal("merged lineage aliases the parent's map")
	}
}

func TestTranslationSource(t *testing.T) {
	en := version(1, "en", 2, nil)
	de := version(2, "de", 1, nil)
	ownLang := version(3, "fr", 4, nil)

	if got := entity.TranslationSource("fr", []*entity.SubtitleVersion{en, de, ownLang}); got != de {
		t.Fatalf("TranslationSource = %+v, want the most recently created foreign parent", got)
	}
	if got := entity.TranslationSource("fr", []*entity.SubtitleVersion{ownLang}); got != nil {
		t.Fatalf("TranslationSource = %+v, want nil", got)
	}

	tieA := version(10, "en", 1, nil)
	tieB := version(11, "de", 1, nil)
	tieB.CreatedAt = tieA.CreatedAt
	if got := entity.TranslationSource("fr", []*entity.SubtitleVersion{tieB, tieA}); got != tieB {
		t.Fatalf("tie should resolve to higher id, got %+v", got)
	}
}
