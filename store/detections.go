package store

import (
	"github.com/coreos/bbolt"

	"github.com/chainwatch/btcmonitor/monitor"
)

// detectionsBucket returns (creating if necessary) the sub-bucket holding
// every detection for specKey.
func (t *Tx) detectionsBucket(specKey string) (*bbolt.Bucket, error) {
	root := t.tx.Bucket(bucketDetections)
	return root.CreateBucketIfNotExists([]byte(specKey))
}

func (t *Tx) detectionsBucketRO(specKey string) *bbolt.Bucket {
	root := t.tx.Bucket(bucketDetections)
	return root.Bucket([]byte(specKey))
}

// PutDetection upserts a detection under detections/<spec_key>/<txid>.
func (t *Tx) PutDetection(d monitor.Detection) error {
	b, err := t.detectionsBucket(d.SpecKey)
	if err != nil {
		return err
	}
	raw, err := encode(d)
	if err != nil {
		return err
	}
	return b.Put(d.Txid[:], raw)
}

// GetDetection looks up a single detection.
func (t *Tx) GetDetection(specKey string, txid [32]byte) (monitor.Detection, bool, error) {
	b := t.detectionsBucketRO(specKey)
	if b == nil {
		return monitor.Detection{}, false, nil
	}
	raw := b.Get(txid[:])
	if raw == nil {
		return monitor.Detection{}, false, nil
	}
	var d monitor.Detection
	if err := decode(raw, &d); err != nil {
		return monitor.Detection{}, false, err
	}
	return d, true, nil
}

// DeleteDetection removes a detection, used by the Reorg Resolver when the
// detection's including block is reorganized out.
func (t *Tx) DeleteDetection(specKey string, txid [32]byte) error {
	b := t.detectionsBucketRO(specKey)
	if b == nil {
		return nil
	}
	return b.Delete(txid[:])
}

// DetectionsForSpec returns every live detection recorded for specKey.
func (t *Tx) DetectionsForSpec(specKey string) ([]monitor.Detection, error) {
	b := t.detectionsBucketRO(specKey)
	if b == nil {
		return nil, nil
	}
	var out []monitor.Detection
	err := b.ForEach(func(_, raw []byte) error {
		var d monitor.Detection
		if err := decode(raw, &d); err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// AllDetections walks every detection in the store, regardless of
// spec_key, used by the Reorg Resolver to find everything above a given
// height.
func (t *Tx) AllDetections(fn func(monitor.Detection) error) error {
	root := t.tx.Bucket(bucketDetections)
	return root.ForEach(func(specKey, v []byte) error {
		if v != nil {
			return nil
		}
		b := root.Bucket(specKey)
		return b.ForEach(func(_, raw []byte) error {
			var d monitor.Detection
			if err := decode(raw, &d); err != nil {
				return err
			}
			return fn(d)
		})
	})
}
