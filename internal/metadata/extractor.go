package metadata

import (
	"time"

	"go.uber.org/zap"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

// Options configures the default source chain.
type Options struct {
	SidecarSuffixes []string
	VideoProbe      types.VideoProbe
	FFProbePath     string
	ProbeTimeout    time.Duration
	// Zones localizes sidecar epoch timestamps by coordinate. Nil means time.Local.
	Zones TZLocator
}

// New builds the resolver with the standard fallback order:
// embedded EXIF, Takeout JSON sidecar, camera XML sidecar, video container,
// file name, modification time.
func New(opts Options, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return NewResolver(logger,
		NewEmbeddedSource(),
		NewSidecarSource(opts.SidecarSuffixes, opts.Zones),
		NewXMLSidecarSource(),
		NewVideoSource(NewProbe(opts.VideoProbe, opts.FFProbePath), opts.ProbeTimeout, logger),
		NewFilenameSource(),
		NewModTimeSource(),
	)
}
