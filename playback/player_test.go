package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glosings0n/Vut-Elimu/audio"
)

// gatedDecoder holds each chunk's decode until its gate is released,
// simulating variable decode latency.
type gatedDecoder struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	sizes map[string]int
}

func newGatedDecoder(sizes map[string]int) *gatedDecoder {
	g := &gatedDecoder{gates: make(map[string]chan struct{}), sizes: sizes}
	for k := range sizes {
		g.gates[k] = make(chan struct{})
	}
	return g
}

func (g *gatedDecoder) release(key string) {
	close(g.gates[key])
}

func (g *gatedDecoder) decode(ctx context.Context, data string) (*audio.Buffer, error) {
	g.mu.Lock()
	gate := g.gates[data]
	n := g.sizes[data]
	g.mu.Unlock()

	select {
	case <-gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if n < 0 {
		return nil, audio.ErrDecode
	}
	return &audio.Buffer{Samples: make([]float32, n), SampleRate: audio.OutputSampleRate}, nil
}

func waitTimeline(t *testing.T, out *VirtualOutput, n int) []Scheduled {
	t.Helper()
	require.Eventually(t, func() bool { return len(out.Timeline()) == n }, time.Second, time.Millisecond)
	return out.Timeline()
}

func assertGapless(t *testing.T, timeline []Scheduled) {
	t.Helper()
	for i := 1; i < len(timeline); i++ {
		assert.GreaterOrEqual(t, timeline[i].Start, timeline[i-1].Start)
		assert.GreaterOrEqual(t, timeline[i].Start, timeline[i-1].End())
	}
}

// 100ms, 200ms and 300ms at 24kHz so each chunk is identifiable by length.
var chunkSizes = map[string]int{"1": 2400, "2": 4800, "3": 7200}

func TestPlayer_CompletionOrder(t *testing.T) {
	clock := &ManualClock{}
	out := NewVirtualOutput(clock)
	dec := newGatedDecoder(chunkSizes)
	p := NewPlayer(out, WithDecoder(dec.decode))
	ctx := context.Background()

	p.Enqueue(ctx, "1")
	p.Enqueue(ctx, "2")
	p.Enqueue(ctx, "3")

	dec.release("1")
	waitTimeline(t, out, 1)
	dec.release("3")
	waitTimeline(t, out, 2)
	dec.release("2")
	timeline := waitTimeline(t, out, 3)
	p.Wait()

	assert.Equal(t, []int{2400, 7200, 4800}, []int{timeline[0].Samples, timeline[1].Samples, timeline[2].Samples})
	assert.Equal(t, time.Duration(0), timeline[0].Start)
	assert.Equal(t, 100*time.Millisecond, timeline[1].Start)
	assert.Equal(t, 400*time.Millisecond, timeline[2].Start)
	assertGapless(t, timeline)
	assert.Equal(t, 600*time.Millisecond, p.Cursor())
}

func TestPlayer_ArrivalOrder(t *testing.T) {
	clock := &ManualClock{}
	out := NewVirtualOutput(clock)
	dec := newGatedDecoder(chunkSizes)
	p := NewPlayer(out, WithDecoder(dec.decode), WithOrderPolicy(OrderArrival))
	ctx := context.Background()

	p.Enqueue(ctx, "1")
	p.Enqueue(ctx, "2")
	p.Enqueue(ctx, "3")

	dec.release("1")
	waitTimeline(t, out, 1)
	dec.release("3")
	// chunk 3 is held back behind chunk 2
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, out.Timeline(), 1)

	dec.release("2")
	timeline := waitTimeline(t, out, 3)
	p.Wait()

	assert.Equal(t, []int{2400, 4800, 7200}, []int{timeline[0].Samples, timeline[1].Samples, timeline[2].Samples})
	assertGapless(t, timeline)
}

func TestPlayer_ArrivalOrderSkipsFailedChunk(t *testing.T) {
	out := NewVirtualOutput(&ManualClock{})
	dec := newGatedDecoder(map[string]int{"1": 2400, "bad": -1, "3": 2400})
	var drops int
	var mu sync.Mutex
	p := NewPlayer(out,
		WithDecoder(dec.decode),
		WithOrderPolicy(OrderArrival),
		WithDropHandler(func(err error) {
			mu.Lock()
			drops++
			mu.Unlock()
			assert.ErrorIs(t, err, audio.ErrDecode)
		}),
	)
	ctx := context.Background()

	p.Enqueue(ctx, "1")
	p.Enqueue(ctx, "bad")
	p.Enqueue(ctx, "3")
	dec.release("3")
	dec.release("1")
	dec.release("bad")

	waitTimeline(t, out, 2)
	p.Wait()
	mu.Lock()
	assert.Equal(t, 1, drops)
	mu.Unlock()
}

func TestPlayer_DecodeFailureContinues(t *testing.T) {
	out := NewVirtualOutput(&ManualClock{})
	var dropped error
	p := NewPlayer(out, WithDropHandler(func(err error) { dropped = err }))
	ctx := context.Background()

	p.Enqueue(ctx, "***not base64***")
	p.Wait()
	require.Error(t, dropped)
	assert.ErrorIs(t, dropped, audio.ErrDecode)

	good := audio.EncodeBlob(make([]float32, 240)).Data
	p.Enqueue(ctx, good)
	p.Wait()
	assert.Len(t, out.Timeline(), 1)
}

func TestPlayer_StaleSessionSkipsPlayback(t *testing.T) {
	out := NewVirtualOutput(&ManualClock{})
	dec := newGatedDecoder(map[string]int{"1": 2400})
	current := true
	var mu sync.Mutex
	p := NewPlayer(out, WithDecoder(dec.decode), WithCurrentCheck(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return current
	}))

	p.Enqueue(context.Background(), "1")
	mu.Lock()
	current = false
	mu.Unlock()
	dec.release("1")
	p.Wait()

	assert.Empty(t, out.Timeline())
}

func TestPlayer_CloseDuringDecode(t *testing.T) {
	out := NewVirtualOutput(&ManualClock{})
	dec := newGatedDecoder(map[string]int{"1": 2400, "2": 2400})
	p := NewPlayer(out, WithDecoder(dec.decode))

	p.Enqueue(context.Background(), "1")
	p.Close()
	dec.release("1")
	p.Wait()

	// Enqueue after close is a no-op
	p.Enqueue(context.Background(), "2")
	p.Wait()
	assert.Empty(t, out.Timeline())
}

func TestPlayer_SpeakingIndicator(t *testing.T) {
	clock := &ManualClock{}
	out := NewVirtualOutput(clock)
	var mu sync.Mutex
	var states []bool
	p := NewPlayer(out, WithSpeakingHandler(func(s bool) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	}))
	ctx := context.Background()

	chunk := audio.EncodeBlob(make([]float32, 2400)).Data // 100ms at 24kHz
	p.Enqueue(ctx, chunk)
	p.Enqueue(ctx, chunk)
	p.Wait()
	require.Len(t, out.Timeline(), 2)

	out.Poll()
	assert.True(t, p.Speaking())

	clock.Advance(150 * time.Millisecond)
	out.Poll()
	assert.True(t, p.Speaking(), "second chunk still playing")

	clock.Advance(100 * time.Millisecond)
	out.Poll()
	assert.False(t, p.Speaking())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, states)
}

func TestPlayer_FlushDropsQueuedAudio(t *testing.T) {
	clock := &ManualClock{}
	out := NewVirtualOutput(clock)
	p := NewPlayer(out)
	ctx := context.Background()

	chunk := audio.EncodeBlob(make([]float32, 24000)).Data // 1s
	p.Enqueue(ctx, chunk)
	p.Wait()
	out.Poll()
	assert.True(t, p.Speaking())

	p.Flush()
	assert.False(t, p.Speaking())
	assert.Zero(t, p.Cursor())

	clock.Advance(200 * time.Millisecond)
	p.Enqueue(ctx, chunk)
	p.Wait()
	timeline := out.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, 200*time.Millisecond, timeline[1].Start)
}

func TestPlayer_ResumesSuspendedOutput(t *testing.T) {
	out := NewSuspendedVirtualOutput(&ManualClock{})
	p := NewPlayer(out)

	p.Enqueue(context.Background(), audio.EncodeBlob(make([]float32, 10)).Data)
	p.Wait()

	assert.False(t, out.Suspended())
	assert.Len(t, out.Timeline(), 1)
}

func TestPlayer_ClosedOutputDrops(t *testing.T) {
	out := NewVirtualOutput(&ManualClock{})
	require.NoError(t, out.Close())
	var dropped error
	p := NewPlayer(out, WithDropHandler(func(err error) { dropped = err }))

	p.Enqueue(context.Background(), audio.EncodeBlob(make([]float32, 10)).Data)
	p.Wait()
	assert.True(t, errors.Is(dropped, ErrOutputClosed))
}

func TestParseOrderPolicy(t *testing.T) {
	p, err := ParseOrderPolicy("arrival")
	require.NoError(t, err)
	assert.Equal(t, OrderArrival, p)
	assert.Equal(t, "arrival", p.String())

	p, err = ParseOrderPolicy("")
	require.NoError(t, err)
	assert.Equal(t, OrderCompletion, p)

	_, err = ParseOrderPolicy("random")
	assert.Error(t, err)
}
