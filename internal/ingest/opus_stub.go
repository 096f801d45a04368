//go:build !opus

package ingest

func newOpusDecoder(rate, channels int) (frameDecoder, error) {
	return nil, ErrOpusUnavailable
}
