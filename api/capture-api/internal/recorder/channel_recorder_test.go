// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	internal_type "github.com/rapidaai/capture/api/capture-api/internal/type"
	"github.com/rapidaai/capture/pkg/commons"
)

// fakeTrack is a manually driven track: the test pushes data or an error.
type fakeTrack struct {
	kind string
	data chan []byte
	errc chan error
}

func newFakeTrack(kind string) *fakeTrack {
	return &fakeTrack{
		kind: kind,
		data: make(chan []byte, 16),
		errc: make(chan error, 1),
	}
}

func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) Read(ctx context.Context) ([]byte, error) {
	select {
	case d := <-t.data:
		return d, nil
	case err := <-t.errc:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTrack) Stop() {}

type fakeStream struct {
	tracks []internal_type.Track
}

func (s *fakeStream) ID() string                    { return "fake" }
func (s *fakeStream) Tracks() []internal_type.Track { return s.tracks }
func (s *fakeStream) Stop()                         {}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-recorder"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func newTestRecorder(t *testing.T, tracks ...internal_type.Track) (*ChannelRecorder, *internal_type.MediaChannel) {
	t.Helper()
	channel := &internal_type.MediaChannel{
		Kind:   internal_type.ChannelDisplay,
		Stream: &fakeStream{tracks: tracks},
	}
	rec := NewChannelRecorder(newTestLogger(t), channel, 10*time.Millisecond)
	return rec, channel
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (r *ChannelRecorder) buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Len()
}

func (r *ChannelRecorder) chunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channel.Chunks)
}

func TestRecorderCollectsChunks(t *testing.T) {
	track := newFakeTrack("video")
	rec, channel := newTestRecorder(t, track)

	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	track.data <- []byte{1, 2, 3}
	track.data <- []byte{4, 5}

	waitFor(t, func() bool { return rec.chunkCount() > 0 || rec.buffered() == 5 },
		"expected data to be consumed")
	rec.Stop()
	<-rec.Done()

	var all []byte
	for _, c := range channel.Chunks {
		all = append(all, c...)
	}
	if !bytes.Equal(all, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("expected ordered concatenation, got %v", all)
	}
}

func TestRecorderFinalFlushOnStop(t *testing.T) {
	track := newFakeTrack("video")
	rec, channel := newTestRecorder(t, track)
	rec.flush = time.Hour // never tick; only the final flush may emit

	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	track.data <- []byte{9, 9}
	waitFor(t, func() bool { return rec.buffered() == 2 }, "expected buffered data")

	rec.Stop()
	<-rec.Done()
	if len(channel.Chunks) != 1 {
		t.Fatalf("expected exactly 1 final chunk, got %d", len(channel.Chunks))
	}
}

func TestRecorderZeroChunksStillCompletes(t *testing.T) {
	rec, channel := newTestRecorder(t, newFakeTrack("video"))
	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Stop()

	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("recorder with zero chunks must still complete")
	}
	if len(channel.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(channel.Chunks))
	}
}

func TestRecorderPauseDiscardsData(t *testing.T) {
	track := newFakeTrack("video")
	rec, channel := newTestRecorder(t, track)
	rec.flush = time.Hour

	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Pause()
	track.data <- []byte{7, 7, 7}
	waitFor(t, func() bool { return len(track.data) == 0 }, "expected read while paused")
	// Let the read loop process the frame before resuming.
	time.Sleep(20 * time.Millisecond)

	rec.Resume()
	track.data <- []byte{1}
	waitFor(t, func() bool { return rec.buffered() == 1 }, "expected post-resume data buffered")

	rec.Stop()
	<-rec.Done()
	if got := channel.ChunkBytes(); got != 1 {
		t.Fatalf("paused data must be discarded, got %d bytes", got)
	}
}

func TestRecorderPauseResumeIdempotent(t *testing.T) {
	rec, _ := newTestRecorder(t, newFakeTrack("video"))
	// Pause before start and double resume must be no-ops.
	rec.Pause()
	rec.Resume()
	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Pause()
	rec.Pause()
	rec.Resume()
	rec.Resume()
	rec.Stop()
	<-rec.Done()
}

func TestRecorderFaultSilencesChannel(t *testing.T) {
	track := newFakeTrack("video")
	rec, channel := newTestRecorder(t, track)

	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	track.data <- []byte{1, 2}
	waitFor(t, func() bool { return rec.buffered() == 2 || rec.chunkCount() > 0 },
		"expected pre-fault data")
	track.errc <- errors.New("encoder died")

	// The fault must not prevent completion.
	rec.Stop()
	select {
	case <-rec.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("faulted recorder must still complete on stop")
	}
	if rec.Err() == nil {
		t.Fatal("expected recorder fault to be reported")
	}
	if channel.ChunkBytes() != 2 {
		t.Fatalf("pre-fault chunks must survive, got %d bytes", channel.ChunkBytes())
	}
}

func TestRecorderStopIsIdempotent(t *testing.T) {
	rec, _ := newTestRecorder(t, newFakeTrack("video"))
	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.Stop()
	rec.Stop()
	<-rec.Done()
}

func TestRecorderDoubleStartRejected(t *testing.T) {
	rec, _ := newTestRecorder(t, newFakeTrack("video"))
	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Start(time.Now().UnixMicro()); err == nil {
		t.Fatal("second Start must be rejected")
	}
	rec.Stop()
	<-rec.Done()
}

func TestRecorderDetachDiscardsLateFlush(t *testing.T) {
	track := newFakeTrack("video")
	channel := &internal_type.MediaChannel{
		Kind:   internal_type.ChannelDisplay,
		Stream: &fakeStream{tracks: []internal_type.Track{track}},
	}
	// Flush interval long enough that the buffered tail survives to stop.
	rec := NewChannelRecorder(newTestLogger(t), channel, time.Hour)

	if err := rec.Start(time.Now().UnixMicro()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	track.data <- []byte("late-tail")
	waitFor(t, func() bool { return rec.buffered() > 0 }, "data never buffered")

	rec.Detach()
	if n := rec.buffered(); n != 0 {
		t.Fatalf("detach must drop the buffer, still have %d byte(s)", n)
	}

	// A detach survivor finishing its stop late must not append to the
	// chunk sequence the assembler already took over.
	rec.Stop()
	<-rec.Done()
	if n := rec.chunkCount(); n != 0 {
		t.Fatalf("detached recorder appended %d chunk(s)", n)
	}
}
