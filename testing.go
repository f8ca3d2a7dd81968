package drawsheet

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ScriptedReply is one canned model answer for the scripted invoker.
type ScriptedReply struct {
	Raw string
	Err error
}

// ScriptedInvoker replays canned responses keyed by equipment id, matched
// against the prompt text. Rounds consume replies in order, so a script of
// two replies drives an initial pass plus one retry.
type ScriptedInvoker struct {
	mu      sync.Mutex
	scripts map[string][]ScriptedReply
	calls   int
}

// NewScriptedInvoker returns an empty scripted invoker.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{scripts: make(map[string][]ScriptedReply)}
}

// Script queues replies for one equipment id.
func (s *ScriptedInvoker) Script(equipmentID string, replies ...ScriptedReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[equipmentID] = append(s.scripts[equipmentID], replies...)
}

// Calls reports how many generation calls were made across all items.
func (s *ScriptedInvoker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Generate implements Invoker. The prompt always embeds the equipment
// number, which is how the reply queue is selected.
func (s *ScriptedInvoker) Generate(ctx context.Context, model string, prompt string, image DrawingImage) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	// Longest matching id wins so "E-1" never shadows "E-1021".
	best := ""
	for id := range s.scripts {
		if strings.Contains(prompt, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return nil, fmt.Errorf("scripted invoker: no script matches prompt")
	}
	queue := s.scripts[best]
	if len(queue) == 0 {
		return nil, fmt.Errorf("scripted invoker: no replies left for %q", best)
	}
	reply := queue[0]
	s.scripts[best] = queue[1:]
	if reply.Err != nil {
		return nil, reply.Err
	}
	return []byte(reply.Raw), nil
}

// NewForTesting creates an Extractor on a scripted invoker, no genai client
// required.
func NewForTesting(inv Invoker) *Extractor {
	return NewWithInvoker(inv, nil)
}
