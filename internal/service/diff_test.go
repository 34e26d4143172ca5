package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ungeschneuer/srl-allris-bot/internal/domain"
	"github.com/ungeschneuer/srl-allris-bot/internal/service/mocks"
)

func TestSelectNew(t *testing.T) {
	tests := []struct {
		name    string
		fetched []string
		known   map[string]bool
		want    []string
	}{
		{
			name:    "all new",
			fetched: []string{"1", "2", "3"},
			known:   map[string]bool{},
			want:    []string{"1", "2", "3"},
		},
		{
			name:    "all known",
			fetched: []string{"1", "2"},
			known:   map[string]bool{"1": true, "2": true},
			want:    nil,
		},
		{
			name:    "mixed preserves order",
			fetched: []string{"1", "2", "3", "4"},
			known:   map[string]bool{"1": true, "3": true},
			want:    []string{"2", "4"},
		},
		{
			name:    "empty fetch",
			fetched: nil,
			known:   map[string]bool{},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			history := mocks.NewMockHistoryStore(ctrl)

			ctx := context.Background()
			var fetched []domain.Paper
			for _, id := range tt.fetched {
				fetched = append(fetched, domain.Paper{ID: id})
				history.EXPECT().Contains(ctx, id).Return(tt.known[id], nil)
			}

			fresh, err := selectNew(ctx, fetched, history)
			require.NoError(t, err)

			var got []string
			for _, p := range fresh {
				got = append(got, p.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectNew_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)

	ctx := context.Background()
	storeErr := &domain.StoreError{Op: "contains", Err: errors.New("io")}

	history.EXPECT().Contains(ctx, "1").Return(false, nil)
	history.EXPECT().Contains(ctx, "2").Return(false, storeErr)

	fetched := []domain.Paper{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	fresh, err := selectNew(ctx, fetched, history)

	assert.Nil(t, fresh)
	assert.ErrorIs(t, err, storeErr)
}
