// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package expansion

import (
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/poiesic/codesense/core"
	"github.com/poiesic/codesense/storage"
	"github.com/poiesic/codesense/textutil"
)

// Index is an immutable term to document map over the stored corpus.
// Documents are identified by their ordinal in entity id order.
type Index struct {
	docs     uint32
	terms    []string
	postings map[string]*roaring.Bitmap
	scopes   map[SourceScope]*roaring.Bitmap
}

// BuildIndex tokenizes the name, path and content metadata of every stored
// embedding.
func BuildIndex(ctx context.Context, store storage.EmbeddingStore) (*Index, error) {
	records, err := store.Query(ctx, nil, 0)
	if err != nil {
		return nil, err
	}
	return newIndex(ctx, records)
}

func newIndex(ctx context.Context, records []*core.Embedding) (*Index, error) {
	idx := &Index{
		postings: make(map[string]*roaring.Bitmap),
		scopes: map[SourceScope]*roaring.Bitmap{
			ScopeAll:  roaring.New(),
			ScopeCode: roaring.New(),
			ScopeDocs: roaring.New(),
		},
	}

	for i, rec := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ord := uint32(i)
		idx.scopes[ScopeAll].Add(ord)
		switch t := rec.Type(); {
		case t.IsCode():
			idx.scopes[ScopeCode].Add(ord)
		case t == core.EntityTypeDocument || t == core.EntityTypeNote:
			idx.scopes[ScopeDocs].Add(ord)
		}

		for _, key := range []string{core.MetaName, core.MetaPath, core.MetaContent} {
			for _, tok := range textutil.Tokens(rec.Metadata.GetString(key)) {
				bm, ok := idx.postings[tok]
				if !ok {
					bm = roaring.New()
					idx.postings[tok] = bm
				}
				bm.Add(ord)
			}
		}
	}
	idx.docs = uint32(len(records))

	idx.terms = make([]string, 0, len(idx.postings))
	for t, bm := range idx.postings {
		bm.RunOptimize()
		idx.terms = append(idx.terms, t)
	}
	slices.Sort(idx.terms)
	return idx, nil
}

// Len returns the number of indexed documents.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return int(x.docs)
}

// Vocabulary returns the number of distinct terms.
func (x *Index) Vocabulary() int {
	if x == nil {
		return 0
	}
	return len(x.terms)
}

// DocumentFrequency returns how many documents in scope contain term.
func (x *Index) DocumentFrequency(term string, scope SourceScope) uint64 {
	bm, ok := x.postings[term]
	if !ok {
		return 0
	}
	return bm.AndCardinality(x.scopes[scope])
}
