// ABOUTME: File decoders for mp3, wav, flac and ogg vorbis
// ABOUTME: Each yields native-rate interleaved s16 samples
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
)

// mp3Decoder wraps go-mp3, which always produces stereo s16le
type mp3Decoder struct {
	file *os.File
	dec  *mp3.Decoder
	buf  []byte
}

func newMP3Decoder(f *os.File) (*mp3Decoder, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	return &mp3Decoder{file: f, dec: dec}, nil
}

func (d *mp3Decoder) Read(samples []int16) (int, error) {
	need := len(samples) * 2
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}

	n, err := io.ReadFull(d.dec, d.buf[:need])
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	n -= n % 4 // whole stereo frames

	decoded := audio.DecodeS16LE(samples[:0], d.buf[:n])
	return len(decoded), err
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }
func (d *mp3Decoder) Channels() int   { return 2 }
func (d *mp3Decoder) Close() error    { return d.file.Close() }

// wavDecoder reads integer PCM WAV files of any bit depth
type wavDecoder struct {
	file     *os.File
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
}

func newWAVDecoder(f *os.File) (*wavDecoder, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a PCM wav file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav encoding %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	return &wavDecoder{
		file: f,
		dec:  dec,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: int(dec.NumChans),
				SampleRate:  int(dec.SampleRate),
			},
		},
		bitDepth: int(dec.BitDepth),
	}, nil
}

func (d *wavDecoder) Read(samples []int16) (int, error) {
	if cap(d.buf.Data) < len(samples) {
		d.buf.Data = make([]int, len(samples))
	}
	d.buf.Data = d.buf.Data[:len(samples)]

	n, err := d.dec.PCMBuffer(d.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to decode wav: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i, v := range d.buf.Data[:n] {
		samples[i] = scaleTo16(v, d.bitDepth)
	}
	return n, nil
}

func (d *wavDecoder) SampleRate() int { return int(d.dec.SampleRate) }
func (d *wavDecoder) Channels() int   { return int(d.dec.NumChans) }
func (d *wavDecoder) Close() error    { return d.file.Close() }

// scaleTo16 converts an integer sample of the given bit depth to s16
func scaleTo16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

// oggDecoder wraps oggvorbis, which decodes to float32
type oggDecoder struct {
	file *os.File
	dec  *oggvorbis.Reader
	buf  []float32
}

func newOggDecoder(f *os.File) (*oggDecoder, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ogg vorbis: %w", err)
	}
	return &oggDecoder{file: f, dec: dec}, nil
}

func (d *oggDecoder) Read(samples []int16) (int, error) {
	if cap(d.buf) < len(samples) {
		d.buf = make([]float32, len(samples))
	}

	n, err := d.dec.Read(d.buf[:len(samples)])
	for i, v := range d.buf[:n] {
		samples[i] = audio.FloatToInt16(v)
	}
	return n, err
}

func (d *oggDecoder) SampleRate() int { return d.dec.SampleRate() }
func (d *oggDecoder) Channels() int   { return d.dec.Channels() }
func (d *oggDecoder) Close() error    { return d.file.Close() }

// flacDecoder walks FLAC frames one at a time
type flacDecoder struct {
	file   *os.File
	stream *flac.Stream

	// current frame, interleaved, and how much of it was handed out
	frame []int16
	pos   int
}

func newFLACDecoder(f *os.File) (*flacDecoder, error) {
	stream, err := flac.New(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	return &flacDecoder{file: f, stream: stream}, nil
}

func (d *flacDecoder) Read(samples []int16) (int, error) {
	channels := d.Channels()
	want := len(samples) - len(samples)%channels
	n := 0

	for n < want {
		if d.pos == len(d.frame) {
			if err := d.next(); err != nil {
				if errors.Is(err, io.EOF) && n > 0 {
					return n, nil
				}
				return n, err
			}
		}
		copied := copy(samples[n:want], d.frame[d.pos:])
		d.pos += copied
		n += copied
	}
	return n, nil
}

// next decodes the following frame into d.frame
func (d *flacDecoder) next() error {
	fr, err := d.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to parse FLAC frame: %w", err)
	}

	bits := int(d.stream.Info.BitsPerSample)
	channels := len(fr.Subframes)
	frames := len(fr.Subframes[0].Samples)

	d.frame = d.frame[:0]
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			d.frame = append(d.frame, flacTo16(fr.Subframes[ch].Samples[i], bits))
		}
	}
	d.pos = 0
	return nil
}

func (d *flacDecoder) SampleRate() int { return int(d.stream.Info.SampleRate) }
func (d *flacDecoder) Channels() int   { return int(d.stream.Info.NChannels) }

func (d *flacDecoder) Close() error {
	d.stream.Close()
	return d.file.Close()
}

// flacTo16 rescales a signed FLAC sample of the given bit depth to s16
func flacTo16(v int32, bits int) int16 {
	switch {
	case bits > 16:
		return int16(v >> (bits - 16))
	case bits < 16:
		return int16(v << (16 - bits))
	default:
		return int16(v)
	}
}
