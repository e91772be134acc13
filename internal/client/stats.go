package client

import "github.com/BuzzLyutic/todo-api/internal/model"

type Stats struct {
	Pending   int
	Completed int
	Total     int
}

func ComputeStats(items []model.Task) Stats {
	st := Stats{Total: len(items)}
	for _, t := range items {
		if t.Completed {
			st.Completed++
		} else {
			st.Pending++
		}
	}
	return st
}
