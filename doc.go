// Package drawsheet extracts structured datasheet records from scanned
// engineering drawings using a vision-capable AI model. It owns prompt
// construction, a two-pass (initial + targeted-retry) extraction loop,
// per-equipment concurrent scheduling with progress reporting, and the
// fuzzy component-name matching used to fold model output back onto
// canonical component records. Storage, rendering and the HTTP surface are
// external collaborators: the engine consumes drawing-page references and
// schemas and returns validated results, nothing more.
//
// # Extraction model
//
// A caller registers one EquipmentSchema per item — its identifiers plus
// the ordered components and the fields expected for each — then submits a
// batch:
//
//	reg := drawsheet.NewRegistry()
//	reg.Add(drawsheet.NewEquipmentSchema("E-1021",
//	    drawsheet.ComponentSchema{Name: "Shell", Fields: drawsheet.StandardFields()},
//	    drawsheet.ComponentSchema{Name: "Tube Bundle", Fields: drawsheet.StandardFields()},
//	))
//
//	client, _ := genai.NewClient(ctx, nil)
//	x := drawsheet.New(client)
//	results, err := x.RunBatch(ctx, reg, reg.IDs(), locator, sink,
//	    drawsheet.WithModel("gemini-2.0-flash"),
//	    drawsheet.WithMaxRounds(2),
//	)
//
// Each item runs its own pipeline on a bounded worker pool: build the
// initial prompt, call the model with the drawing image, parse and validate
// the JSON answer, then — if fields are still missing and round budget
// remains — build a retry prompt listing exactly those fields and go again.
// Fields resolved in an earlier round are never re-requested or cleared.
// The loop is hard-bounded by MaxRounds model calls per item; when the
// budget runs out the partial result is returned with FullyResolved=false
// rather than looping further.
//
// # Results
//
// Every result contains exactly one ExtractedComponent per schema
// component, in schema order, even when nothing resolved — downstream
// renderers rely on that. Per-item failures (unreachable service, unusable
// response) are recorded on the item and never abort the batch. The
// progress sink receives serialized updates and a final one with
// Completed == Total, exactly once.
//
// # Matching
//
// Model output names components in free text. MatchName and
// MatchComponents reconcile those against canonical names in tiers — exact,
// substring, token overlap, then first-candidate best effort — so the
// report renderer can decide which component fills which table row.
package drawsheet
