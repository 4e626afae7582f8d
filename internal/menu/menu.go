package menu

import "fmt"

// Item is a single orderable menu entry. Items are immutable once the
// catalog is built; identity is the Key.
type Item struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Rating      float64 `json:"rating"`
	PrepTime    string  `json:"time"`
	Calories    int     `json:"calories"`
	Badge       string  `json:"badge"`
	Description string  `json:"description"`
}

// Catalog is an ordered, read-only collection of menu items.
type Catalog struct {
	items []Item
	byKey map[string]int
}

// New builds a catalog from the given items, preserving order.
// Duplicate keys and invalid entries are rejected.
func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		byKey: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.Key == "" {
			return nil, fmt.Errorf("menu item %q has empty key", it.Name)
		}
		if it.Price < 0 {
			return nil, fmt.Errorf("menu item %q has negative price", it.Key)
		}
		if _, dup := c.byKey[it.Key]; dup {
			return nil, fmt.Errorf("duplicate menu key %q", it.Key)
		}
		c.byKey[it.Key] = len(c.items)
		c.items = append(c.items, it)
	}
	return c, nil
}

// Items returns the catalog entries in order. The returned slice is a copy.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// ByKey looks up an item by its key.
func (c *Catalog) ByKey(key string) (Item, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// IndexOf returns the ordinal position of a key, or -1 when absent.
func (c *Catalog) IndexOf(key string) int {
	i, ok := c.byKey[key]
	if !ok {
		return -1
	}
	return i
}

// At returns the item at position i.
func (c *Catalog) At(i int) Item { return c.items[i] }

// Len reports the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Default returns the built-in Gourmet Express menu.
func Default() *Catalog {
	c, err := New([]Item{
		{
			Key: "caesar_salad", Name: "Caesar Salad", Price: 8.99,
			Image:    "https://images.unsplash.com/photo-1550304943-4f24f54ddde9?w=500&h=500&fit=crop",
			Rating:   4.5, PrepTime: "10 min", Calories: 320, Badge: "Healthy",
			Description: "Fresh romaine lettuce with parmesan and croutons",
		},
		{
			Key: "cheeseburger", Name: "Cheeseburger", Price: 12.99,
			Image:    "https://images.unsplash.com/photo-1568901346375-23c9450c58cd?w=500&h=500&fit=crop",
			Rating:   4.8, PrepTime: "15 min", Calories: 650, Badge: "Bestseller",
			Description: "Juicy beef patty with melted cheese and fresh vegetables",
		},
		{
			Key: "chicken_nuggets", Name: "Chicken Nuggets", Price: 7.99,
			Image:    "https://images.unsplash.com/photo-1562967914-608f82629710?w=500&h=500&fit=crop",
			Rating:   4.6, PrepTime: "12 min", Calories: 480, Badge: "Kids Favorite",
			Description: "Crispy golden nuggets served with dipping sauce",
		},
		{
			Key: "french_fries", Name: "French Fries", Price: 4.99,
			Image:    "https://images.unsplash.com/photo-1573080496219-bb080dd4f877?w=500&h=500&fit=crop",
			Rating:   4.7, PrepTime: "8 min", Calories: 380, Badge: "Popular",
			Description: "Golden crispy fries with sea salt",
		},
		{
			Key: "fried_chicken_wings", Name: "Fried Chicken Wings", Price: 11.99,
			Image:    "https://images.unsplash.com/photo-1626082927389-6cd097cdc6ec?w=500&h=500&fit=crop",
			Rating:   4.9, PrepTime: "18 min", Calories: 580, Badge: "Spicy",
			Description: "Crispy wings tossed in our signature sauce",
		},
		{
			Key: "hot_dog", Name: "Hot Dog", Price: 6.99,
			Image:    "https://images.unsplash.com/photo-1612392166886-ee8475b03af2?w=500&h=500&fit=crop",
			Rating:   4.4, PrepTime: "5 min", Calories: 420, Badge: "Quick Bite",
			Description: "Classic hot dog with mustard and ketchup",
		},
		{
			Key: "soft_drink", Name: "Soft Drink", Price: 2.99,
			Image:    "https://images.unsplash.com/photo-1581006852262-e4307cf6283a?w=500&h=500&fit=crop",
			Rating:   4.3, PrepTime: "1 min", Calories: 150, Badge: "Refreshing",
			Description: "Ice-cold beverages to complement your meal",
		},
		{
			Key: "veggie_burger", Name: "Veggie Burger", Price: 10.99,
			Image:    "https://images.unsplash.com/photo-1520072959219-c595dc870360?w=500&h=500&fit=crop",
			Rating:   4.6, PrepTime: "14 min", Calories: 390, Badge: "Vegetarian",
			Description: "Plant-based patty with fresh organic vegetables",
		},
	})
	if err != nil {
		// The built-in data is static; a failure here is a programming error.
		panic(err)
	}
	return c
}
