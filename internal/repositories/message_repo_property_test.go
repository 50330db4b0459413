package repositories

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any N inserts, ListRecent returns min(N, 10) messages, newest first,
// and ids strictly increase in submission order.
func TestProperty_ListRecentReturnsNewestFirst(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("list recent is capped and ordered by descending id", prop.ForAll(
		func(contents []string) bool {
			repo, _ := setupTestRepo(t)
			ctx := context.Background()

			created := make([]uint64, 0, len(contents))
			for _, content := range contents {
				m, err := repo.Create(ctx, content)
				if err != nil {
					t.Logf("create failed: %v", err)
					return false
				}
				if len(created) > 0 && m.ID <= created[len(created)-1] {
					t.Logf("ids not increasing: %d after %d", m.ID, created[len(created)-1])
					return false
				}
				created = append(created, m.ID)
			}

			messages, err := repo.ListRecent(ctx, DefaultListLimit)
			if err != nil {
				t.Logf("list failed: %v", err)
				return false
			}

			want := min(len(contents), DefaultListLimit)
			if len(messages) != want {
				t.Logf("expected %d messages, got %d", want, len(messages))
				return false
			}

			for i, m := range messages {
				src := len(contents) - 1 - i
				if m.ID != created[src] || m.Content != contents[src] {
					t.Logf("position %d: got (%d, %q), want (%d, %q)",
						i, m.ID, m.Content, created[src], contents[src])
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
