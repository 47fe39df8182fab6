// Package harness runs YAML conformance scenarios against declared storages.
//
// A scenario names a declarations directory, seeds fixture rows, and then
// invokes storage methods in order, checking each outcome against an
// expect clause:
//
//	name: books_by_author
//	description: Derived finders filter and order by author
//	specs: ../library
//	fixtures:
//	  - entity: Book
//	    rows:
//	      - {id: 1, title: Dune, author: Herbert, pages: 412}
//	steps:
//	  - invoke: BookStorage.findByAuthorOrderByTitle
//	    args: [Herbert]
//	    expect:
//	      len: 1
//	      rows:
//	        - {title: Dune}
//	assertions:
//	  - type: row_count
//	    entity: Book
//	    count: 1
//
// Every run uses a fresh in-memory SQLite database, a logical clock for
// step numbering, and a sequential generator for uuid keys, so the same
// scenario always produces the same trace. RunWithGolden compares that
// trace against testdata/golden/<name>.golden.
//
// # Expect Clauses
//
//   - len: number of records returned (list, one, page)
//   - rows: ordered subset match on returned records
//   - count, exists, total: scalar results and page totals
//   - none: a "one" method found nothing
//   - error: the QueryError code the step must fail with
//
// # Assertions
//
//   - row_count: number of stored rows of an entity
//   - final_state: one stored row matching where has the expected values
package harness
