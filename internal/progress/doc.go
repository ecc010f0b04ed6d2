// Package progress renders download progress in the terminal.
//
// A Reporter polls a Source (the scheduler) and draws one bar per task with
// github.com/vbauerster/mpb/v8. Stop prints a one-line summary.
//
// # Usage
//
//	reporter := progress.NewReporter(sched, progress.Options{Output: os.Stderr})
//	reporter.Start()
//	defer reporter.Stop()
//
// # Output Format
//
//	file.bin    12.0 MiB / 40.0 MiB |=======>--------------| 30 %
//	other.iso    1.2 GiB /  1.2 GiB |======================| 100 %
//	[fetchq] 2 completed | 0 failed | 0 pending | 1.2 GiB in 1m 12s
//
// FormatBytes and ParseBytes convert between byte counts and strings such as
// "2 MiB" or "512MB".
package progress
