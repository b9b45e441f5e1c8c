// Package narrate speaks setup prompts on its own goroutine so that a slow
// text-to-speech engine never stalls frame capture.
package narrate

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"body-measure/utils"
)

// Speaker says one prompt and returns when it has finished speaking.
type Speaker interface {
	Say(ctx context.Context, text string) error
}

// LogSpeaker writes prompts to the log instead of speaking them.
type LogSpeaker struct{}

// Say implements Speaker.
func (LogSpeaker) Say(_ context.Context, text string) error {
	utils.L().Info("narrator: %s", text)
	return nil
}

// CommandSpeaker runs an external TTS program with the prompt as the last
// argument, e.g. ["espeak", "-s", "150"].
type CommandSpeaker struct {
	Argv []string
}

// Say implements Speaker.
func (s CommandSpeaker) Say(ctx context.Context, text string) error {
	if len(s.Argv) == 0 {
		return fmt.Errorf("narrator: empty command")
	}
	args := append(append([]string{}, s.Argv[1:]...), text)
	out, err := exec.CommandContext(ctx, s.Argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("narrator: %s: %w (%s)", s.Argv[0], err, out)
	}
	return nil
}

// Narrator plays its prompts once, in order, then closes Ready. It never
// touches measurement state; Ready is its only signal to the pipeline.
type Narrator struct {
	speaker Speaker
	prompts []string
	ready   chan struct{}
	once    sync.Once
	done    chan struct{}
}

// New creates a narrator. With no prompts it is ready immediately after Start.
func New(speaker Speaker, prompts []string) *Narrator {
	if speaker == nil {
		speaker = LogSpeaker{}
	}
	return &Narrator{
		speaker: speaker,
		prompts: append([]string(nil), prompts...),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Ready is closed once every prompt has been spoken (or narration was
// cancelled), meaning the user should now hold still.
func (n *Narrator) Ready() <-chan struct{} { return n.ready }

// Done is closed when the narration goroutine exits.
func (n *Narrator) Done() <-chan struct{} { return n.done }

// Start launches the narration goroutine.
func (n *Narrator) Start(ctx context.Context) {
	go n.run(ctx)
}

func (n *Narrator) run(ctx context.Context) {
	defer close(n.done)
	defer n.markReady()

	for _, p := range n.prompts {
		if ctx.Err() != nil {
			return
		}
		// A failed prompt is not worth blocking capture over.
		if err := n.speaker.Say(ctx, p); err != nil {
			utils.L().Warn("%v", err)
		}
	}
}

func (n *Narrator) markReady() {
	n.once.Do(func() { close(n.ready) })
}
