package nvm

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPages = []byte("pages")
	bucketMeta  = []byte("meta")
	keySize     = []byte("size")
	keyPageSize = []byte("page_size")
)

// DefaultPageSize is the page granularity of a new Bolt image.
const DefaultPageSize = 64

// Bolt is a medium whose image is stored as fixed-size pages in a bbolt
// database. Pages that were never written read as erased. Each WriteBlock
// runs in a single transaction.
type Bolt struct {
	db       *bolt.DB
	size     int
	pageSize int
}

// OpenBolt opens or creates a bbolt-backed image. The geometry of an existing
// image is read from the database and must match size.
func OpenBolt(path string, size, pageSize int) (*Bolt, error) {
	if size <= 0 || pageSize <= 0 {
		return nil, fmt.Errorf("bolt medium: invalid geometry size=%d page=%d", size, pageSize)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketPages, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if raw := meta.Get(keySize); raw != nil {
			if got := decodeInt(raw); got != size {
				return fmt.Errorf("image size %d, configured %d", got, size)
			}
			if got := decodeInt(meta.Get(keyPageSize)); got != pageSize {
				return fmt.Errorf("image page size %d, configured %d", got, pageSize)
			}
			return nil
		}
		if err := meta.Put(keySize, encodeInt(size)); err != nil {
			return err
		}
		return meta.Put(keyPageSize, encodeInt(pageSize))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt medium: %w", err)
	}

	return &Bolt{db: db, size: size, pageSize: pageSize}, nil
}

func (d *Bolt) ReadBlock(addr, n int) ([]byte, error) {
	if err := checkRange(d.size, addr, n); err != nil {
		return nil, err
	}
	out := bytes.Repeat([]byte{Erased}, n)
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketPages)
		}
		for page := addr / d.pageSize; page*d.pageSize < addr+n; page++ {
			data := b.Get(pageKey(page))
			if data == nil {
				continue
			}
			copySpan(out, addr, data, page*d.pageSize)
		}
		return nil
	})
	if err != nil {
		return nil, faultf("bolt: read %d@%d: %v", n, addr, err)
	}
	return out, nil
}

func (d *Bolt) WriteBlock(addr int, data []byte) error {
	if err := checkRange(d.size, addr, len(data)); err != nil {
		return err
	}
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPages)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketPages)
		}
		for page := addr / d.pageSize; page*d.pageSize < addr+len(data); page++ {
			key := pageKey(page)
			buf := bytes.Repeat([]byte{Erased}, d.pageSize)
			if cur := b.Get(key); cur != nil {
				copy(buf, cur)
			}
			copySpan(buf, page*d.pageSize, data, addr)
			if err := b.Put(key, buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return faultf("bolt: write %d@%d: %v", len(data), addr, err)
	}
	return nil
}

func (d *Bolt) Size() int {
	return d.size
}

func (d *Bolt) Close() error {
	return d.db.Close()
}

// copySpan copies the overlap of src (starting at absolute address srcAddr)
// into dst (starting at absolute address dstAddr).
func copySpan(dst []byte, dstAddr int, src []byte, srcAddr int) {
	lo := max(dstAddr, srcAddr)
	hi := min(dstAddr+len(dst), srcAddr+len(src))
	if lo >= hi {
		return
	}
	copy(dst[lo-dstAddr:hi-dstAddr], src[lo-srcAddr:hi-srcAddr])
}

func pageKey(page int) []byte {
	return encodeInt(page)
}

func encodeInt(v int) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeInt(b []byte) int {
	if len(b) != 4 {
		return -1
	}
	return int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
}
