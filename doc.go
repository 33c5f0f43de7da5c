// Package vecshop is a multimodal product search library.
//
// A search fuses an optional image vector with an optional text vector,
// retrieves topK × overfetch candidates from Valkey, Redis or Postgres
// (pgvector) with exact category/color pre-filters, and re-ranks them by
// vector similarity, attribute matches and title text similarity.
//
//	client, err := vecshop.New(
//	    vecshop.WithValkey("localhost:6379", ""),
//	    vecshop.WithEmbedder(myClipTextEncoder),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	resp, err := client.Search().
//	    Text("red leather shoes").
//	    Image(photoVec).
//	    Color("red").
//	    TopK(5).
//	    Debug().
//	    Do(ctx)
package vecshop
