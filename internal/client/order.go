package client

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

type Order string

const (
	OrderDefault      Order = "default"
	OrderAlphabetical Order = "alphabetical"
	OrderPending      Order = "pending"
	OrderCompleted    Order = "completed"
)

// Orders lists the accepted orders, default first.
var Orders = []Order{OrderDefault, OrderAlphabetical, OrderPending, OrderCompleted}

func ParseOrder(s string) (Order, error) {
	if s == "" {
		return OrderDefault, nil
	}
	for _, o := range Orders {
		if string(o) == s {
			return o, nil
		}
	}
	return "", fmt.Errorf("unknown order %q (want one of %v)", s, Orders)
}

// OrderTasks returns a sorted copy of items. The input slice is never modified.
// Default keeps server order; pending and completed move that group first and keep order within groups.
func OrderTasks(items []model.Task, order Order) []model.Task {
	out := append([]model.Task(nil), items...)

	switch order {
	case OrderAlphabetical:
		// Collator хранит буферы, поэтому новый на каждый вызов
		col := collate.New(language.BrazilianPortuguese)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].Text, out[j].Text) < 0
		})
	case OrderPending:
		sort.SliceStable(out, func(i, j int) bool {
			return !out[i].Completed && out[j].Completed
		})
	case OrderCompleted:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Completed && !out[j].Completed
		})
	}
	return out
}
