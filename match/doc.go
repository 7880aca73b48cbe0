// Package match implements threshold-based identification on top of an index.
//
// A query vector is resolved to its single nearest neighbor. If the distance is
// within the threshold the result is Found, carrying the neighbor's metadata
// record; otherwise it is Unknown. This is the usual flow for face or voice
// recognition where the index holds one embedding per enrolled identity.
//
//	meta := match.NewMemoryMetadataStore()
//	m, _ := match.New(idx, meta, match.WithThreshold(0.5))
//	_ = m.Enroll(ctx, 1, embedding, match.Record{"name": "Ada"})
//	res, _ := m.Match(ctx, query)
//	if f, ok := res.(match.Found); ok {
//	    fmt.Println(f.Record["name"], f.Distance)
//	}
package match
