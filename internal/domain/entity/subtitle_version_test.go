package entity_test

import (
	"errors"
	"testing"

	"subtitle-history-api/internal/domain/entity"
	apperrors "subtitle-history-api/pkg/errors"
)

func TestCheckParents(t *testing.T) {
	fr := &entity.SubtitleLanguage{ID: 2, VideoID: "vid1", LanguageCode: "fr"}

	en1 := &entity.SubtitleVersion{ID: 1, SubtitleLanguageID: 1, VideoID: "vid1", LanguageCode: "en", VersionNumber: 1}
	en2 := &entity.SubtitleVersion{ID: 2, SubtitleLanguageID: 1, VideoID: "vid1", LanguageCode: "en", VersionNumber: 2}
	de1 := &entity.SubtitleVersion{ID: 3, SubtitleLanguageID: 3, VideoID: "vid1", LanguageCode: "de", VersionNumber: 1}
	foreign := &entity.SubtitleVersion{ID: 4, SubtitleLanguageID: 9, VideoID: "vid2", LanguageCode: "en", VersionNumber: 1}
	strayFr := &entity.SubtitleVersion{ID: 5, SubtitleLanguageID: 7, VideoID: "vid1", LanguageCode: "fr", VersionNumber: 1}
	previous := &entity.SubtitleVersion{ID: 6, SubtitleLanguageID: 2, VideoID: "vid1", LanguageCode: "fr", VersionNumber: 1,
		Lineage: entity.Lineage{"en": 2}}
	de2 := &entity.SubtitleVersion{ID: 7, SubtitleLanguageID: 3, VideoID: "vid1", LanguageCode: "de", VersionNumber: 2,
		Lineage: entity.Lineage{"en": 2}}

	tests := []struct {
		name     string
		parents  []*entity.SubtitleVersion
		previous *entity.SubtitleVersion
		wantErr  bool
	}{
		{name: "no parents", parents: nil},
		{name: "distinct languages", parents: []*entity.SubtitleVersion{en2, de1}},
		{name: "duplicate language", parents: []*entity.SubtitleVersion{en1, en2}, wantErr: true},
		{name: "other video", parents: []*entity.SubtitleVersion{foreign}, wantErr: true},
		{name: "own language from another branch", parents: []*entity.SubtitleVersion{strayFr}, wantErr: true},
		{name: "lineage regression", parents: []*entity.SubtitleVersion{previous, en1}, previous: previous, wantErr: true},
		{name: "same lineage entry", parents: []*entity.SubtitleVersion{previous, en2}, previous: previous},
		{name: "nil parent", parents: []*entity.SubtitleVersion{nil}, wantErr: true},
		{name: "sibling parent already incorporates newer version", parents: []*entity.SubtitleVersion{de2, en1}, wantErr: true},
		{name: "sibling parent lineage matches", parents: []*entity.SubtitleVersion{de2, en2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := entity.CheckParents(fr, tt.parents, tt.previous)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrValidationFailed) {
					t.Fatalf("CheckParents error = %v, want validation failure", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckParents: %v", err)
			}
		})
	}
}

func TestCheckRollback(t *testing.T) {
	n := func(v int) *int { return &v }
	tests := []struct {
		name       string
		rollbackOf *int
		number     int
		wantErr    bool
	}{
		{name: "not a rollback", rollbackOf: nil, number: 1},
		{name: "earlier version", rollbackOf: n(1), number: 3},
		{name: "same version", rollbackOf: n(3), number: 3, wantErr: true},
		{name: "future version", rollbackOf: n(4), number: 3, wantErr: true},
		{name: "zero", rollbackOf: n(0), number: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := entity.CheckRollback(tt.rollbackOf, tt.number)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckRollback error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
