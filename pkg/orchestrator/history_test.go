package orchestrator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func entry(i int) ConversationEntry {
	return ConversationEntry{
		AgentID:       "a1",
		AgentName:     "Algebra",
		UserMessage:   fmt.Sprintf("question %d", i),
		AgentResponse: fmt.Sprintf("answer %d", i),
		Timestamp:     time.Now(),
	}
}

func TestInMemoryStore(t *testing.T) {
	t.Run("history is empty for unknown course", func(t *testing.T) {
		s := NewInMemoryStore()
		assert.Empty(t, s.History("missing"))
	})

	t.Run("entries come back most recent last", func(t *testing.T) {
		s := NewInMemoryStore()
		s.Append("c1", entry(1))
		s.Append("c1", entry(2))

		h := s.History("c1")
		assert.Len(t, h, 2)
		assert.Equal(t, "question 1", h[0].UserMessage)
		assert.Equal(t, "question 2", h[1].UserMessage)
	})

	t.Run("appending 25 entries keeps exactly the last 20", func(t *testing.T) {
		s := NewInMemoryStore()
		for i := 1; i <= 25; i++ {
			s.Append("c1", entry(i))
		}

		h := s.History("c1")
		assert.Len(t, h, MaxHistoryEntries)
		assert.Equal(t, "question 6", h[0].UserMessage, "oldest entries evicted first")
		assert.Equal(t, "question 25", h[len(h)-1].UserMessage)
	})

	t.Run("courses are isolated", func(t *testing.T) {
		s := NewInMemoryStore()
		s.Append("c1", entry(1))
		s.Append("c2", entry(2))

		assert.Len(t, s.History("c1"), 1)
		assert.Len(t, s.History("c2"), 1)
	})

	t.Run("clear drops only the named course", func(t *testing.T) {
		s := NewInMemoryStore()
		s.Append("c1", entry(1))
		s.Append("c2", entry(2))

		s.Clear("c1")

		assert.Empty(t, s.History("c1"))
		assert.Len(t, s.History("c2"), 1)
	})

	t.Run("concurrent appends across courses are safe", func(t *testing.T) {
		s := NewInMemoryStore()

		var wg sync.WaitGroup
		for c := 0; c < 4; c++ {
			courseID := fmt.Sprintf("c%d", c)
			for i := 0; i < 30; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					s.Append(courseID, entry(i))
					_ = s.History(courseID)
				}(i)
			}
		}
		wg.Wait()

		for c := 0; c < 4; c++ {
			assert.Len(t, s.History(fmt.Sprintf("c%d", c)), MaxHistoryEntries)
		}
	})
}
