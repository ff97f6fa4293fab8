package appointment

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	apperrors "github.com/clinicore/scheduling-api/pkg/errors"
)

var windowBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func drawWindow(t *rapid.T, label string) (time.Time, time.Time) {
	startMin := rapid.IntRange(0, 7*24*60).Draw(t, label+"_start")
	durMin := rapid.IntRange(1, 12*60).Draw(t, label+"_dur")
	start := windowBase.Add(time.Duration(startMin) * time.Minute)
	return start, start.Add(time.Duration(durMin) * time.Minute)
}

func TestOverlapsProperties(t *testing.T) {
	t.Run("symmetric", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			s1, e1 := drawWindow(t, "a")
			s2, e2 := drawWindow(t, "b")
			if Overlaps(s1, e1, s2, e2) != Overlaps(s2, e2, s1, e1) {
				t.Fatalf("asymmetric overlap for [%v,%v) and [%v,%v)", s1, e1, s2, e2)
			}
		})
	})

	t.Run("self overlap", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			s, e := drawWindow(t, "w")
			if !Overlaps(s, e, s, e) {
				t.Fatalf("window [%v,%v) must overlap itself", s, e)
			}
		})
	})

	t.Run("adjacent windows never overlap", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			s, e := drawWindow(t, "w")
			followMin := rapid.IntRange(1, 8*60).Draw(t, "follow")
			if Overlaps(s, e, e, e.Add(time.Duration(followMin)*time.Minute)) {
				t.Fatalf("window starting at %v must not overlap one ending there", e)
			}
		})
	})

	t.Run("shared minute always overlaps", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			s1, e1 := drawWindow(t, "a")
			// Second window starts strictly inside the first.
			insetMin := rapid.IntRange(0, int(e1.Sub(s1)/time.Minute)-1).Draw(t, "inset")
			s2 := s1.Add(time.Duration(insetMin) * time.Minute)
			durMin := rapid.IntRange(1, 12*60).Draw(t, "dur")
			if !Overlaps(s1, e1, s2, s2.Add(time.Duration(durMin)*time.Minute)) {
				t.Fatalf("window starting inside [%v,%v) must overlap it", s1, e1)
			}
		})
	})
}

func TestValidateWindowProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		startMin := rapid.IntRange(0, 7*24*60).Draw(t, "start")
		// Duration from negative one hour to ten hours, in seconds to
		// probe the exact boundaries.
		durSec := rapid.IntRange(-3600, 10*3600).Draw(t, "dur_sec")

		start := windowBase.Add(time.Duration(startMin) * time.Minute)
		end := start.Add(time.Duration(durSec) * time.Second)
		dur := end.Sub(start)

		err := ValidateWindow(start, end)
		switch {
		case dur <= 0:
			if !apperrors.IsKind(err, apperrors.KindInvalidWindow) {
				t.Fatalf("duration %v: want INVALID_WINDOW, got %v", dur, err)
			}
		case dur < MinDuration || dur > MaxDuration:
			if !apperrors.IsKind(err, apperrors.KindDurationOutOfRange) {
				t.Fatalf("duration %v: want DURATION_OUT_OF_RANGE, got %v", dur, err)
			}
		default:
			if err != nil {
				t.Fatalf("duration %v: want accept, got %v", dur, err)
			}
		}
	})
}
