package nn

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Meta is training progress stored next to the parameters
type Meta struct {
	Games   int
	Record  int
	SavedAt time.Time
}

type checkpoint struct {
	Sizes  [4]int
	Params [][]byte
	Meta   Meta
}

// Save writes the parameters to path, creating the directory if needed.
// The file is replaced atomically.
func (q *QNet) Save(path string, meta Meta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}

	cp := checkpoint{Sizes: q.layerSizes(), Meta: meta}
	for _, p := range q.Params() {
		blob, err := p.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to encode parameters: %w", err)
		}
		cp.Params = append(cp.Params, blob)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(cp); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load restores parameters saved by Save into q. The architecture must match.
func (q *QNet) Load(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()

	var cp checkpoint
	if err := gob.NewDecoder(f).Decode(&cp); err != nil {
		return Meta{}, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	if cp.Sizes != q.layerSizes() {
		return Meta{}, fmt.Errorf("%w: checkpoint layers %v, network layers %v", ErrShapeMismatch, cp.Sizes, q.layerSizes())
	}

	params := q.Params()
	if len(cp.Params) != len(params) {
		return Meta{}, fmt.Errorf("%w: checkpoint has %d tensors", ErrShapeMismatch, len(cp.Params))
	}
	restored := make([]*mat.Dense, len(params))
	for i, blob := range cp.Params {
		var d mat.Dense
		if err := d.UnmarshalBinary(blob); err != nil {
			return Meta{}, fmt.Errorf("failed to decode tensor %d: %w", i, err)
		}
		wr, wc := params[i].Dims()
		if r, c := d.Dims(); r != wr || c != wc {
			return Meta{}, fmt.Errorf("%w: tensor %d is %dx%d, expected %dx%d", ErrShapeMismatch, i, r, c, wr, wc)
		}
		restored[i] = &d
	}
	for i, p := range params {
		p.Copy(restored[i])
	}
	return cp.Meta, nil
}
