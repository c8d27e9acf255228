// Package harness runs conformance scenarios against a journaled query
// endpoint.
//
// A scenario is a YAML document declaring a record type, a dataset of that
// type and a list of steps. Each step carries one request envelope in its
// wire shape, decoded through the same JSON codec the HTTP binding uses,
// and an expect clause:
//
//	name: contains_filter
//	description: Filter by sequence membership
//	record:
//	  name: TestData
//	  fields:
//	    - {name: Name, type: string}
//	    - {name: Tag, type: int}
//	    - {name: Xs, type: "Seq[int]"}
//	dataset:
//	  - {Name: Test1, Tag: 12, Xs: [35, 66, 2567]}
//	steps:
//	  - name: count_all
//	    count: {}
//	    expect: {count: 1, format: count}
//
// Requests run through a real Executor over an in-memory journal, with a
// deterministic clock and sequential request IDs ("req-0001", ...). The
// journal is read back as the trace, which assertions inspect and which
// golden files snapshot together with the per-step results.
package harness
