// Package scheduler runs many download tasks with a cap on how many transfer
// at the same time.
//
// Run drives two things from one goroutine: a ticker that admits at most one
// waiting task per tick, and the event stream that all tasks report into.
// Events are forwarded to subscribers. When the last admitted task ends and
// nothing is left to admit, a model.Batch with the number of failed tasks is
// published.
//
//	s := scheduler.New(scheduler.WithMaxParallel(3))
//	s.AddTask("https://example.com/a.iso", "", "")
//	done := s.SubscribeBatches(1)
//	go s.Run(ctx)
//	batch := <-done
package scheduler
