// Package audio converts between compressed voice packets, raw 16-bit
// linear PCM, and a self-describing WAV container. Conversions are
// deterministic and side-effect free; the Store type is the only part
// of the package that touches disk.
package audio
