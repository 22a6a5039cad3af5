// Package pipeline runs image searches as a sequence of steps.
//
// A search job passes through ReadFileStep (uploads only), ExifCheckStep,
// SearchStep and HistoryStep. Each step receives the job and adds to its
// report; the first error is recorded in the job.
//
// BatchProcessor runs one pipeline per target with bounded concurrency
// using errgroup, and returns the jobs in input order.
package pipeline
