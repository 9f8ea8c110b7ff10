package memory

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tryfix/estream/backend"
	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
	"go.uber.org/multierr"
)

// PartitionMemory is a memory backend split into independent partitions by
// key hash. Each partition has its own map and expiry cleaner.
type PartitionMemory interface {
	backend.Backend
	Partitions() []backend.Iterator
}

type partitionMemory struct {
	name           string
	partitionCount int
	partitions     map[int]backend.Backend
}

func NewPartitionMemoryBackend(name string, partitions int, logger log.Logger, reporter metrics.Reporter) PartitionMemory {
	partitionedBackend := &partitionMemory{
		name:           name,
		partitionCount: partitions,
		partitions:     make(map[int]backend.Backend),
	}

	for i := 0; i < partitions; i++ {
		partitionedBackend.partitions[i] = newMemory(fmt.Sprintf(`%s-%d`, name, i), 100*time.Millisecond, logger, reporter)
	}

	return partitionedBackend
}

func (pm *partitionMemory) partition(key []byte) backend.Backend {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return pm.partitions[int(h.Sum32()%uint32(pm.partitionCount))]
}

func (pm *partitionMemory) Name() string {
	return pm.name
}

func (pm *partitionMemory) Set(key []byte, value []byte, expiry time.Duration) error {
	return pm.partition(key).Set(key, value, expiry)
}

func (pm *partitionMemory) Get(key []byte) ([]byte, error) {
	return pm.partition(key).Get(key)
}

func (pm *partitionMemory) Has(key []byte) (bool, error) {
	return pm.partition(key).Has(key)
}

func (pm *partitionMemory) collect(from, to []byte) backend.Iterator {
	var records []backend.KeyVal
	for i := 0; i < pm.partitionCount; i++ {
		it := pm.partitions[i].RangeIterator(from, to)
		for it.SeekToFirst(); it.Valid(); it.Next() {
			records = append(records, backend.KeyVal{Key: it.Key(), Value: it.Value()})
		}
		if err := it.Error(); err != nil {
			return backend.NewErrorIterator(err)
		}
		it.Close()
	}

	return backend.NewSliceIterator(records)
}

func (pm *partitionMemory) RangeIterator(fromKy []byte, toKey []byte) backend.Iterator {
	return pm.collect(fromKy, toKey)
}

func (pm *partitionMemory) Iterator() backend.Iterator {
	return pm.collect(nil, nil)
}

func (pm *partitionMemory) Delete(key []byte) error {
	return pm.partition(key).Delete(key)
}

func (pm *partitionMemory) Destroy() error {
	var err error
	for i := 0; i < pm.partitionCount; i++ {
		err = multierr.Append(err, pm.partitions[i].Destroy())
	}
	return err
}

func (pm *partitionMemory) SetExpiry(expiry time.Duration) {
	for i := 0; i < pm.partitionCount; i++ {
		pm.partitions[i].SetExpiry(expiry)
	}
}

func (pm *partitionMemory) String() string {
	return `partition memory`
}

func (pm *partitionMemory) Persistent() bool {
	return false
}

func (pm *partitionMemory) Close() error {
	var err error
	for i := 0; i < pm.partitionCount; i++ {
		err = multierr.Append(err, pm.partitions[i].Close())
	}
	return err
}

// Partitions returns one snapshot iterator per partition.
func (pm *partitionMemory) Partitions() []backend.Iterator {
	var iterators []backend.Iterator
	for i := 0; i < pm.partitionCount; i++ {
		iterators = append(iterators, pm.partitions[i].Iterator())
	}
	return iterators
}
