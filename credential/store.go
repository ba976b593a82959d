package credential

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/akrylysov/pogreb"
)

// Store persists credentials in an embedded pogreb database, values
// gob-encoded, keyed by credential ID.
type Store struct {
	db     *pogreb.DB
	swapMu sync.Mutex
}

func OpenStore(path string) (*Store, error) {
	db, err := pogreb.Open(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func marshalBinary(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	err := enc.Encode(v)
	return b.Bytes(), err
}

func unmarshalBinary(buf []byte, pointer any) error {
	b := bytes.NewBuffer(buf)
	dec := gob.NewDecoder(b)
	return dec.Decode(pointer)
}

func (s *Store) Get(_ context.Context, id string) (*Credential, error) {
	b, err := s.db.Get([]byte(id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotFound
	}
	cred := new(Credential)
	if err := unmarshalBinary(b, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *Store) Put(_ context.Context, cred *Credential) error {
	b, err := marshalBinary(cred)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(cred.ID), b)
}

func (s *Store) ByOwner(ctx context.Context, owner string) ([]*Credential, error) {
	creds := make([]*Credential, 0)
	iter := s.db.Items()
	for {
		_, val, err := iter.Next()
		if err == pogreb.ErrIterationDone {
			break
		}
		if err != nil {
			return nil, err
		}
		cred := new(Credential)
		if err := unmarshalBinary(val, cred); err != nil {
			return nil, err
		}
		if cred.Owner == owner {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Swap serializes read-modify-write cycles behind a mutex; pogreb has
// no transactions, and the counter check depends on this being atomic.
func (s *Store) Swap(ctx context.Context, id string, apply func(*Credential) error) (*Credential, error) {
	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	cred, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(cred); err != nil {
		return nil, err
	}
	if err := s.Put(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Delete([]byte(id))
}
