package tasks

// TaskSchedulerInterface is what the API layer sees of the background
// scheduler: queue management only, no worker internals.
// Example usage:
//
//	scheduler := NewScheduler(configCache, callRepo, sourceRepo, httpClient, pipeline, extractor)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessSourceTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
