package monitoring

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/banshee-data/huskylens/internal/huskylens"
)

// hexBytes renders b as "55 aa 11 ...".
func hexBytes(b []byte) string {
	return fmt.Sprintf("% x", b)
}

// NewLogObserver logs frame traffic at debug level and rejected frames as
// warnings.
func NewLogObserver(logger *zap.Logger) huskylens.Observer {
	log := logger.Named("frames")
	return huskylens.ObserverFunc(func(e huskylens.Event) {
		switch e.Kind {
		case huskylens.EventFrameSent:
			log.Debug("write", zap.Stringer("command", e.Command), zap.String("bytes", hexBytes(e.Raw)))
		case huskylens.EventFrameReceived:
			log.Debug("read", zap.Stringer("command", e.Command), zap.String("bytes", hexBytes(e.Raw)))
		case huskylens.EventFrameRejected:
			log.Warn("frame rejected", zap.String("kind", errorKind(e.Err)), zap.Error(e.Err))
		}
	})
}

// NewMetricsObserver counts frames and frame errors.
func NewMetricsObserver(m *Metrics) huskylens.Observer {
	return huskylens.ObserverFunc(func(e huskylens.Event) {
		switch e.Kind {
		case huskylens.EventFrameSent:
			m.Frames.WithLabelValues("sent").Inc()
		case huskylens.EventFrameReceived:
			m.Frames.WithLabelValues("received").Inc()
		case huskylens.EventFrameRejected:
			m.FrameErrors.WithLabelValues(errorKind(e.Err)).Inc()
		}
	})
}

func errorKind(err error) string {
	switch {
	case huskylens.IsResponseLength(err):
		return "length"
	case huskylens.IsChecksumMismatch(err):
		return "checksum"
	default:
		return "io"
	}
}
