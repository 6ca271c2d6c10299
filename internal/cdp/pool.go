package cdp

import "sync"

// workerPool 固定数量的 worker 处理拦截事件；提交在队列满时阻塞，不会丢弃请求
type workerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
	done  chan struct{}
}

func newWorkerPool(n int) *workerPool {
	p := &workerPool{
		tasks: make(chan func(), n*4),
		done:  make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			return
		}
	}
}

// submit 提交任务，池已停止时返回 false
func (p *workerPool) submit(task func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.tasks <- task:
		return true
	case <-p.done:
		return false
	}
}

func (p *workerPool) stop() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
