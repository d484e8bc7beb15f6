package indexservice

import (
	"fmt"
	"log"
)

// ComputeFunc runs one index request.
type ComputeFunc func(in *IndexRequest) (*Result, error)

// TaskPool runs index requests on a fixed number of worker
// goroutines.
type TaskPool struct {
	TaskQueue chan *Task
	ErrorMsg  chan *ErrorMsg
	Workers   int
	debug     bool
}

const defaultQueueSize = 400

func (p *TaskPool) AddQueue(task *Task) {
	if len(p.TaskQueue) > defaultQueueSize-10 {
		task.Error <- fmt.Errorf("Pool TaskQueue is full")
		return
	}
	p.TaskQueue <- task
}

func CreateTaskPool(n int, compute ComputeFunc, debug bool) (*TaskPool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid pool size: %d", n)
	}
	if compute == nil {
		return nil, fmt.Errorf("no compute function")
	}

	p := &TaskPool{
		TaskQueue: make(chan *Task, defaultQueueSize),
		ErrorMsg:  make(chan *ErrorMsg),
		Workers:   n,
		debug:     debug,
	}

	go func() {
		for err := range p.ErrorMsg {
			log.Printf("Worker: %v, %v", err.WorkerID, err.Error)
		}
	}()

	for i := 0; i < n; i++ {
		go p.runWorker(fmt.Sprintf("worker%d", i), compute)
	}

	return p, nil
}

func (p *TaskPool) runWorker(id string, compute ComputeFunc) {
	for task := range p.TaskQueue {
		res, err := p.compute(id, compute, task.Payload)
		if err != nil {
			if p.debug {
				p.ErrorMsg <- &ErrorMsg{WorkerID: id, Error: err}
			}
			task.Error <- err
			continue
		}
		res.WorkerID = id
		task.Resp <- res
	}
}

func (p *TaskPool) compute(id string, compute ComputeFunc, in *IndexRequest) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic while computing %s: %v", id, in.ImageID, r)
		}
	}()
	return compute(in)
}

// Close stops the workers once the queued tasks are drained.
func (p *TaskPool) Close() {
	close(p.TaskQueue)
}
