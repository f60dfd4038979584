package jobqueue

import "errors"

var (
	errJobIDRequired = errors.New("jobqueue: JobID is required")
	errJobNotFound   = errors.New("jobqueue: job not found")
)
