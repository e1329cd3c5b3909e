package domain

// Cart is the read-only snapshot of the customer's cart taken when checkout opens.
type Cart struct {
	Items []CartItem `json:"items"`
}

type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

// Empty reports whether there is nothing to buy.
func (c *Cart) Empty() bool {
	return c == nil || len(c.Items) == 0
}

// DisplayTotal sums the unit price snapshots. It is shown before placement only;
// the payable amount always comes from the created order.
func (c *Cart) DisplayTotal() float64 {
	if c == nil {
		return 0
	}
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
