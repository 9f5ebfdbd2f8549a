// Package healthdata provides the streaming extraction core for Apple Health
// export documents.
//
// # Architecture
//
// The package is organized into two main components:
//
// 1. Processor: Streams Record and Workout elements out of an export.xml
// without materializing the document tree
// 2. Coercion: Converts raw attribute strings into typed cells after a
// traversal completes
//
// # Usage
//
// Listing the record types in an export:
//
//	p := healthdata.NewProcessor("export.xml", logger)
//	types, err := p.ListTypes(ctx)
//
// Extracting one metric:
//
//	table, err := p.ExtractByType(ctx, "HKQuantityTypeIdentifierStepCount")
//
// # Traversal Model
//
// Every operation opens the file and runs one full pass over it; nothing is
// cached between calls, so extracting k types costs k traversals. Attributes
// are read off each start tag and the element subtree is skipped, bounding
// peak memory to the matched rows plus constant parser state.
//
// # Coercion Rules
//
// Date columns parse cell by cell; unparseable timestamps become null cells.
// The value column of a record dataset converts to numbers all or nothing: a
// single unparseable value keeps the whole column textual. Workout measure
// columns (duration, totalDistance, totalEnergyBurned) convert cell by cell
// instead, nulling the failures.
//
// # Error Handling
//
// A file that cannot be opened or read surfaces as a SourceUnreadable error;
// an XML syntax error at any depth surfaces as MalformedSource. Both abort
// the in-flight traversal and discard its partial results.
package healthdata
