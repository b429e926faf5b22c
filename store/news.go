package store

import (
	"github.com/chainwatch/btcmonitor/monitor"
)

// NextNewsID allocates and persists the next monotonic news id, per
// spec.md §4.6: "news_id is assigned from meta/next_news_id, monotonic
// across restarts."
func (t *Tx) NextNewsID() (uint64, error) {
	meta := t.tx.Bucket(bucketMeta)
	raw := meta.Get(keyNextNewsID)
	var next uint64
	if raw != nil {
		next = parseUint64(raw)
	}
	if err := meta.Put(keyNextNewsID, beUint64(next+1)); err != nil {
		return 0, err
	}
	return next, nil
}

// PutNews persists a news item and indexes it under
// news_by_spec/<spec_key>/<news_id> for correlation lookups.
func (t *Tx) PutNews(item monitor.NewsItem) error {
	raw, err := encode(item)
	if err != nil {
		return err
	}
	if err := t.tx.Bucket(bucketNews).Put(beUint64(item.NewsID), raw); err != nil {
		return err
	}

	specBucket, err := t.tx.Bucket(bucketNewsBySpec).CreateBucketIfNotExists([]byte(item.SpecKey))
	if err != nil {
		return err
	}
	return specBucket.Put(beUint64(item.NewsID), nil)
}

// GetNews loads a single news item by id.
func (t *Tx) GetNews(id uint64) (monitor.NewsItem, bool, error) {
	raw := t.tx.Bucket(bucketNews).Get(beUint64(id))
	if raw == nil {
		return monitor.NewsItem{}, false, nil
	}
	var item monitor.NewsItem
	if err := decode(raw, &item); err != nil {
		return monitor.NewsItem{}, false, err
	}
	return item, true, nil
}

// UnackedNews returns every news item with acked == false, ordered by
// news_id (bbolt iterates keys in byte order, and our keys are big-endian
// uint64s, so bucket order is already news_id order).
func (t *Tx) UnackedNews() ([]monitor.NewsItem, error) {
	var out []monitor.NewsItem
	err := t.tx.Bucket(bucketNews).ForEach(func(_, raw []byte) error {
		var item monitor.NewsItem
		if err := decode(raw, &item); err != nil {
			return err
		}
		if !item.Acked {
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// AckNews marks the listed ids as acknowledged. Acking an unknown id is a
// no-op, per spec.md §4.6.
func (t *Tx) AckNews(ids []uint64) error {
	b := t.tx.Bucket(bucketNews)
	for _, id := range ids {
		raw := b.Get(beUint64(id))
		if raw == nil {
			continue
		}
		var item monitor.NewsItem
		if err := decode(raw, &item); err != nil {
			return err
		}
		if item.Acked {
			continue
		}
		item.Acked = true
		newRaw, err := encode(item)
		if err != nil {
			return err
		}
		if err := b.Put(beUint64(id), newRaw); err != nil {
			return err
		}
	}
	return nil
}

// PruneNewsOlderThan physically deletes every acked news item whose
// created_at_height is more than window blocks behind tipHeight, per
// spec.md §4.6's pruning rule. Unacked items are never pruned, even if
// stale, since at-least-once delivery requires they remain visible until
// acknowledged.
func (t *Tx) PruneNewsOlderThan(tipHeight uint64, window uint32) error {
	b := t.tx.Bucket(bucketNews)
	var toDelete []monitor.NewsItem

	err := b.ForEach(func(k, raw []byte) error {
		var item monitor.NewsItem
		if err := decode(raw, &item); err != nil {
			return err
		}
		if !item.Acked {
			return nil
		}
		age := tipHeight - uint64(item.CreatedAtHeight)
		if tipHeight >= uint64(item.CreatedAtHeight) && age > uint64(window) {
			toDelete = append(toDelete, item)
		}
		return nil
	})
	if err != nil {
		return err
	}

	specRoot := t.tx.Bucket(bucketNewsBySpec)
	for _, item := range toDelete {
		if err := b.Delete(beUint64(item.NewsID)); err != nil {
			return err
		}
		if specBucket := specRoot.Bucket([]byte(item.SpecKey)); specBucket != nil {
			if err := specBucket.Delete(beUint64(item.NewsID)); err != nil {
				return err
			}
		}
	}
	return nil
}
