package wsola

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingProcessor struct {
	name     string
	visits   *[]string
	finished *int
	result   bool
}

func (p *recordingProcessor) Process(event *AudioEvent) bool {
	*p.visits = append(*p.visits, p.name)
	return p.result
}

func (p *recordingProcessor) Finished() {
	*p.finished++
}

func TestProcessorChain_InsertionOrder(t *testing.T) {
	c := NewProcessorChain()
	var visits []string
	var finished int

	a := &recordingProcessor{name: "a", visits: &visits, finished: &finished, result: true}
	b := &recordingProcessor{name: "b", visits: &visits, finished: &finished, result: true}
	c.Add(a)
	c.Add(b)

	e := NewAudioEvent(testFormat(t))
	c.ForEach(func(p AudioProcessor) bool { return p.Process(e) })

	assert.Equal(t, []string{"a", "b"}, visits)
}

func TestProcessorChain_ShortCircuit(t *testing.T) {
	c := NewProcessorChain()
	var visits []string
	var finished int

	a := &recordingProcessor{name: "a", visits: &visits, finished: &finished, result: false}
	b := &recordingProcessor{name: "b", visits: &visits, finished: &finished, result: true}
	c.Add(a)
	c.Add(b)

	e := NewAudioEvent(testFormat(t))
	c.ForEach(func(p AudioProcessor) bool { return p.Process(e) })

	assert.Equal(t, []string{"a"}, visits)
}

func TestProcessorChain_RemoveCallsFinishedOnce(t *testing.T) {
	c := NewProcessorChain()
	var visits []string
	var finished int

	a := &recordingProcessor{name: "a", visits: &visits, finished: &finished, result: true}
	c.Add(a)
	c.Remove(a)
	c.Remove(a) // no-op: already removed, must not double-call Finished

	assert.Equal(t, 1, finished)
	assert.Equal(t, 0, c.Len())
}

func TestProcessorChain_AddDuringIterationNotVisible(t *testing.T) {
	c := NewProcessorChain()
	var visits []string
	var finished int

	a := &recordingProcessor{name: "a", visits: &visits, finished: &finished, result: true}
	b := &recordingProcessor{name: "b", visits: &visits, finished: &finished, result: true}
	c.Add(a)

	e := NewAudioEvent(testFormat(t))
	c.ForEach(func(p AudioProcessor) bool {
		c.Add(b) // added mid-iteration; must not appear in this pass
		return p.Process(e)
	})

	assert.Equal(t, []string{"a"}, visits)
	assert.Equal(t, 2, c.Len())
}

func TestProcessorChain_FinishAll(t *testing.T) {
	c := NewProcessorChain()
	var visits []string
	var finished int

	a := &recordingProcessor{name: "a", visits: &visits, finished: &finished, result: true}
	b := &recordingProcessor{name: "b", visits: &visits, finished: &finished, result: true}
	c.Add(a)
	c.Add(b)

	c.FinishAll()
	assert.Equal(t, 2, finished)
	assert.Equal(t, 0, c.Len())
}

func TestProcessorChain_ConcurrentAdd(t *testing.T) {
	c := NewProcessorChain()
	var finished int
	var mu sync.Mutex
	var visits []string

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			p := &recordingProcessor{name: "x", visits: &visits, finished: &finished, result: true}
			mu.Unlock()
			c.Add(p)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())
}
