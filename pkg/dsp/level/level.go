// Package level summarises a block of unsigned 8 bit I/Q samples so the
// operator can spot a dead antenna, DC offset or ADC clipping.
package level

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const center = 127.5

type Level struct {
	Samples   int     `json:"samples"`
	MeanI     float64 `json:"mean_i"`
	MeanQ     float64 `json:"mean_q"`
	RMS       float64 `json:"rms"`
	ClipRatio float64 `json:"clip_ratio"`
}

// DBFS returns the RMS magnitude relative to a full scale sine.
func (l Level) DBFS() float64 {
	if l.RMS <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(l.RMS)
}

// Measure looks at every stride'th I/Q pair of an interleaved U8 buffer.
// Values are normalised to [-1, 1].
func Measure(buf []byte, stride int) Level {
	if stride < 1 {
		stride = 1
	}
	pairs := len(buf) / 2
	n := (pairs + stride - 1) / stride
	if n == 0 {
		return Level{}
	}

	is := make([]float64, 0, n)
	qs := make([]float64, 0, n)
	mag := make([]float64, 0, n)
	clipped := 0

	for p := 0; p < pairs; p += stride {
		ib, qb := buf[2*p], buf[2*p+1]
		if ib == 0 || ib == 255 || qb == 0 || qb == 255 {
			clipped++
		}
		i := (float64(ib) - center) / center
		q := (float64(qb) - center) / center
		is = append(is, i)
		qs = append(qs, q)
		mag = append(mag, i*i+q*q)
	}

	return Level{
		Samples:   len(is),
		MeanI:     stat.Mean(is, nil),
		MeanQ:     stat.Mean(qs, nil),
		RMS:       math.Sqrt(stat.Mean(mag, nil)),
		ClipRatio: float64(clipped) / float64(len(is)),
	}
}
