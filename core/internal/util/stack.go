package util

// StackInf is a LIFO stack of arbitrary values.
type StackInf struct {
	stA []interface{}
	top int
}

func NewStackInf() *StackInf {
	return &StackInf{top: -1, stA: make([]interface{}, 0, 16)}
}

func (s *StackInf) Push(obj interface{}) {
	s.top++
	if s.top < len(s.stA) {
		s.stA[s.top] = obj
	} else {
		s.stA = append(s.stA, obj)
	}
}

func (s *StackInf) Len() int {
	return s.top + 1
}

func (s *StackInf) Peek() interface{} {
	if s.top == -1 {
		return nil
	}
	return s.stA[s.top]
}

func (s *StackInf) Pop() interface{} {
	if s.top == -1 {
		return nil
	}
	obj := s.stA[s.top]
	s.stA[s.top] = nil
	s.top--
	return obj
}
