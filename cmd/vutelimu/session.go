package main

import (
	"bufio"
	"context"
	"io"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"github.com/glosings0n/Vut-Elimu/game"
	"github.com/glosings0n/Vut-Elimu/lifecycle"
	"github.com/glosings0n/Vut-Elimu/live"
	"github.com/glosings0n/Vut-Elimu/logger"
)

// session drives the manager from key presses and connection failures.
type session struct {
	mgr      *lifecycle.Manager
	ui       *console
	rng      *rand.Rand
	keys     <-chan rune
	failures <-chan *live.ConnectionError
}

func (s *session) run(ctx context.Context) error {
	keys := s.keys
	for {
		select {
		case <-ctx.Done():
			return s.mgr.Close()
		case err := <-s.failures:
			s.ui.connectionLost(err)
		case k, ok := <-keys:
			if !ok {
				// Stdin closed: keep playing until interrupted.
				keys = nil
				continue
			}
			if err := s.handleKey(ctx, k); err != nil {
				return err
			}
		}
	}
}

func (s *session) handleKey(ctx context.Context, k rune) error {
	switch k {
	case 'm':
		s.mgr.SetMicActive(!s.mgr.MicActive())
		s.ui.toggled("microphone", s.mgr.MicActive())
	case 'v':
		s.mgr.SetVideoActive(!s.mgr.VideoActive())
		s.ui.toggled("camera", s.mgr.VideoActive())
	case 'n':
		c, _ := s.mgr.Content()
		if next, ok := game.Advance(s.rng, c); ok {
			c = next
		}
		s.restart(ctx, c)
	case 'r':
		c, _ := s.mgr.Content()
		s.restart(ctx, c)
	case 'q':
		if err := s.mgr.Close(); err != nil {
			logger.Warn("error while closing session", "error", err)
		}
		return errQuit
	default:
		s.ui.notice("unknown key %q", k)
	}
	return nil
}

func (s *session) restart(ctx context.Context, c game.Content) {
	if err := s.mgr.Restart(ctx, c); err != nil {
		if ctx.Err() == nil {
			s.ui.notice("could not start session: %v", err)
		}
		return
	}
	s.ui.opened(c)
}

// readKeys sends the first rune of each non-empty input line. The channel is
// closed at end of input.
func readKeys(r io.Reader) <-chan rune {
	keys := make(chan rune)
	go func() {
		defer close(keys)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			k, _ := utf8.DecodeRuneInString(strings.ToLower(line))
			keys <- k
		}
	}()
	return keys
}
