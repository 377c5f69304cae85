// Package seg turns a stream of gated sample blocks into discrete
// utterance segments delivered as pipeline events.
package seg

import (
	"time"

	"github.com/google/uuid"

	"vrcbabel/snd"
)

// EventBufferSize bounds the pipeline channel between the capture
// callback and the consumer loop. Sized to hold a couple of segments'
// worth of control events without drops under normal load.
const EventBufferSize = 16

type EventKind int

const (
	SegmentStarted EventKind = iota
	SegmentEnded
	RecordingStopped
)

func (k EventKind) String() string {
	switch k {
	case SegmentStarted:
		return "segment_started"
	case SegmentEnded:
		return "segment_ended"
	case RecordingStopped:
		return "recording_stopped"
	default:
		return "unknown"
	}
}

// Event crosses the thread boundary from the capture callback to the
// consumer. WAV is set only for SegmentEnded and is a fully-formed,
// immutable payload; nothing else is shared with the capture side.
type Event struct {
	Kind      EventKind
	SegmentID string
	StartedAt time.Time
	WAV       []byte
}

// Detector is the speech/non-speech classifier feeding the segmenter.
type Detector interface {
	Process(samples []float32) bool
}

// Segmenter accumulates samples while the detector reports speech and
// finalizes a segment after enough consecutive silent callbacks. It is
// owned by the capture thread and must never block or log: event
// emission is a non-blocking send that drops on overflow rather than
// stalling the audio device, and anomalies are counted for the
// consumer side to report.
type Segmenter struct {
	detector      Detector
	silenceFrames int
	channels      int
	sampleRate    int
	events        chan<- Event

	recording   bool
	silentCount int
	buf         []float32
	segmentID   string
	startedAt   time.Time
	dropped     uint64
	encodeFails uint64
}

func NewSegmenter(
	detector Detector,
	silenceFrames int,
	channels int,
	sampleRate int,
	events chan<- Event,
) *Segmenter {
	return &Segmenter{
		detector:      detector,
		silenceFrames: silenceFrames,
		channels:      channels,
		sampleRate:    sampleRate,
		events:        events,
	}
}

// Feed consumes one device callback's worth of samples. It runs on the
// audio thread; the block is copied into the segment buffer and never
// retained.
func (s *Segmenter) Feed(block []float32) {
	if s.detector.Process(block) {
		if !s.recording {
			s.recording = true
			s.segmentID = uuid.New().String()
			s.startedAt = time.Now()
			s.emit(Event{
				Kind:      SegmentStarted,
				SegmentID: s.segmentID,
				StartedAt: s.startedAt,
			})
		}
		s.buf = append(s.buf, block...)
		s.silentCount = 0
		return
	}

	if !s.recording {
		return
	}

	s.silentCount++
	if s.silentCount < s.silenceFrames {
		// Bridge short pauses so one utterance isn't split.
		s.buf = append(s.buf, block...)
		return
	}

	s.finalize()
}

// finalize encodes the buffered segment and returns to idle. Encoding
// failure drops that segment only; capture continues uninterrupted.
func (s *Segmenter) finalize() {
	s.recording = false
	s.silentCount = 0

	if len(s.buf) > 0 {
		payload, err := snd.EncodeWAV(s.buf, s.channels, s.sampleRate)
		if err != nil {
			s.encodeFails++
		} else {
			s.emit(Event{
				Kind:      SegmentEnded,
				SegmentID: s.segmentID,
				StartedAt: s.startedAt,
				WAV:       payload,
			})
		}
		s.buf = s.buf[:0]
	}

	s.emit(Event{Kind: RecordingStopped, SegmentID: s.segmentID})
	s.segmentID = ""
}

func (s *Segmenter) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped++
	}
}

// Dropped reports how many events were discarded because the pipeline
// channel was full.
func (s *Segmenter) Dropped() uint64 { return s.dropped }

// EncodeFailures reports how many closed segments could not be
// encoded and were discarded.
func (s *Segmenter) EncodeFailures() uint64 { return s.encodeFails }

// Recording reports whether a segment is currently open.
func (s *Segmenter) Recording() bool { return s.recording }
