package vidtex

import "sync"

// A RenderQueue defers tasks to the render goroutine. Any goroutine can
// [RenderQueue.Post]() tasks; the render loop calls [RenderQueue.Drain]()
// once per tick to run them in order.
type RenderQueue struct {
	mutex sync.Mutex
	tasks []func()
}

func NewRenderQueue() *RenderQueue {
	return &RenderQueue{}
}

// Post enqueues a task and returns immediately.
func (q *RenderQueue) Post(task func()) {
	if task == nil {
		return
	}
	q.mutex.Lock()
	q.tasks = append(q.tasks, task)
	q.mutex.Unlock()
}

// Len returns the number of pending tasks.
func (q *RenderQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.tasks)
}

// Drain runs the pending tasks and returns how many ran. Tasks posted while
// draining run on the next call. Must only be called from the render goroutine.
func (q *RenderQueue) Drain() int {
	q.mutex.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mutex.Unlock()

	for _, task := range tasks {
		task()
	}
	return len(tasks)
}
