package tokencodec

import "fmt"

// CodecService holds named codecs per purpose plus a default, mirroring how
// the protocol layer needs one keyed codec for bearer tokens and an
// independently keyed one for cookies.
type CodecService struct {
	Codecs       map[string]Codec
	DefaultCodec Codec
}

// CodecServiceOption is a function that configures a CodecService.
type CodecServiceOption func(*CodecService)

// WithCodec sets the codec for a specific purpose.
func WithCodec(purpose string, codec Codec) CodecServiceOption {
	return func(cs *CodecService) {
		if cs.Codecs == nil {
			cs.Codecs = make(map[string]Codec)
		}
		cs.Codecs[purpose] = codec
	}
}

// WithDefaultCodec sets the default codec.
func WithDefaultCodec(codec Codec) CodecServiceOption {
	return func(cs *CodecService) {
		cs.DefaultCodec = codec
	}
}

// NewCodecService creates a new CodecService.
func NewCodecService(options ...CodecServiceOption) *CodecService {
	cs := &CodecService{
		Codecs: make(map[string]Codec),
	}
	for _, option := range options {
		option(cs)
	}
	return cs
}

// GetCodec returns the codec for the given purpose, falling back to the
// default codec.
func (cs *CodecService) GetCodec(purpose string) Codec {
	codec, ok := cs.Codecs[purpose]
	if !ok {
		return cs.DefaultCodec
	}
	return codec
}

// Protect protects a value for the given purpose.
func (cs *CodecService) Protect(purpose string, v any) (string, error) {
	codec := cs.GetCodec(purpose)
	if codec == nil {
		return "", fmt.Errorf("no codec configured for purpose %q", purpose)
	}
	return codec.Protect(v)
}

// Unprotect unprotects a value for the given purpose.
func (cs *CodecService) Unprotect(purpose string, s string, v any) error {
	codec := cs.GetCodec(purpose)
	if codec == nil {
		return fmt.Errorf("no codec configured for purpose %q", purpose)
	}
	return codec.Unprotect(s, v)
}
