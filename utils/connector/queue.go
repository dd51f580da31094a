package connector

import (
	"sync/atomic"
	"time"
	"unsafe"

	dto "cryptopay/internal/entity"
)

// PollTask is one unit of status-polling work. Attempts counts completed
// status checks; NotBefore spaces checks out to the polling interval.
type PollTask struct {
	Payment   dto.Payment
	Attempts  int
	NotBefore time.Time
}

type Queue interface {
	Enqueue(element PollTask)
	EnqueueList(data []PollTask)
	Dequeue() (PollTask, bool)
}

type QueueNode struct {
	task PollTask
	next unsafe.Pointer
}

type LockFreeQueue struct {
	head unsafe.Pointer
	tail unsafe.Pointer
}

func NewPollQueue() *LockFreeQueue {
	dummy := &QueueNode{}
	return &LockFreeQueue{
		head: unsafe.Pointer(dummy),
		tail: unsafe.Pointer(dummy),
	}
}

func (q *LockFreeQueue) Enqueue(element PollTask) {
	newNode := &QueueNode{task: element}

	for {
		tail := atomic.LoadPointer(&q.tail)
		next := atomic.LoadPointer(&((*QueueNode)(tail)).next)

		if tail == atomic.LoadPointer(&q.tail) {
			if next == nil {
				if atomic.CompareAndSwapPointer(&((*QueueNode)(tail)).next, nil, unsafe.Pointer(newNode)) {
					atomic.CompareAndSwapPointer(&q.tail, tail, unsafe.Pointer(newNode))
					return
				}
			} else {
				atomic.CompareAndSwapPointer(&q.tail, tail, next)
			}
		}
	}
}

func (q *LockFreeQueue) EnqueueList(data []PollTask) {
	for _, task := range data {
		q.Enqueue(task)
	}
}

func (q *LockFreeQueue) Dequeue() (PollTask, bool) {
	for {
		head := atomic.LoadPointer(&q.head)
		next := atomic.LoadPointer(&((*QueueNode)(head)).next)

		if head == atomic.LoadPointer(&q.head) {
			if next == nil {
				return PollTask{}, false
			}
			if atomic.CompareAndSwapPointer(&q.head, head, next) {
				return (*QueueNode)(next).task, true
			}
		}
	}
}
