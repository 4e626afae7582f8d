package relay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Nuwanga-Wijamuni/voice-order/internal/agent"
	"github.com/Nuwanga-Wijamuni/voice-order/internal/menu"
)

// orders holds the per-connection ordering state the agent's tools operate
// on: the carousel position and the cart. It is only ever touched from the
// connection's bridge loop, so it needs no locking.
type orders struct {
	catalog *menu.Catalog
	index   int
	cart    []menu.Item
}

func newOrders(catalog *menu.Catalog) *orders {
	return &orders{catalog: catalog}
}

func orderTools() []agent.Tool {
	return []agent.Tool{
		{
			Type:        "function",
			Name:        "navigate_carousel",
			Description: "Navigate the food carousel to show specific items or move next/previous",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action":    map[string]any{"type": "string", "enum": []string{"next", "previous", "show_item"}},
					"item_name": map[string]any{"type": "string", "description": "Specific item name to show"},
				},
				"required": []string{"action"},
			},
		},
		{
			Type:        "function",
			Name:        "add_to_cart",
			Description: "Add one or more items to the shopping cart",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"items"},
			},
		},
	}
}

// buildInstructions assembles the system prompt for the agent, listing the
// menu so it can ground item references.
func buildInstructions(catalog *menu.Catalog) string {
	var list []string
	for _, it := range catalog.Items() {
		list = append(list, fmt.Sprintf("%s ($%.2f)", it.Name, it.Price))
	}
	return fmt.Sprintf(`You are a friendly fast food restaurant voice ordering assistant.

Available menu items: %s

Your capabilities are defined by the available tools. You MUST use the tools provided to fulfill user requests.
- To navigate the menu, you MUST use the 'navigate_carousel' function.
- To add items to the cart, you MUST use the 'add_to_cart' function.

Do not answer questions about the menu directly; use the tools to show the user the information. For example, if the user asks "show me the cheeseburger", call the 'navigate_carousel' function with the 'show_item' action.
`, strings.Join(list, ", "))
}

type navigateArgs struct {
	Action   string `json:"action"`
	ItemName string `json:"item_name"`
}

type addToCartArgs struct {
	Items []string `json:"items"`
}

// execute runs one tool call against the connection state. It returns the
// envelope type to push to the client and the tool result payload; an empty
// envelope type means nothing to push (e.g. no item matched) and no result
// is reported to the agent.
func (o *orders) execute(name string, rawArgs json.RawMessage) (string, map[string]any) {
	switch name {
	case "navigate_carousel":
		var args navigateArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", nil
		}
		return o.navigate(args)
	case "add_to_cart":
		var args addToCartArgs
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return "", nil
		}
		return o.addToCart(args)
	default:
		return "", nil
	}
}

func (o *orders) navigate(args navigateArgs) (string, map[string]any) {
	n := o.catalog.Len()
	if n == 0 {
		return "", nil
	}
	switch args.Action {
	case "next":
		o.index = (o.index + 1) % n
	case "previous":
		o.index = (o.index - 1 + n) % n
	case "show_item":
		idx, ok := o.matchItem(args.ItemName)
		if !ok {
			return "", nil
		}
		o.index = idx
	default:
		return "", nil
	}
	return "carousel_update", map[string]any{
		"index": o.index,
		"item":  o.catalog.At(o.index),
	}
}

// matchItem resolves a spoken item reference against catalog keys. The
// comparison normalizes case, spaces, and underscores, and accepts a
// substring match in either direction ("cheese burger" matches
// "cheeseburger", "fries" matches "french_fries").
func (o *orders) matchItem(name string) (int, bool) {
	needle := normalizeKey(name)
	if needle == "" {
		return 0, false
	}
	for i, it := range o.catalog.Items() {
		key := normalizeKey(it.Key)
		if strings.Contains(key, needle) || strings.Contains(needle, key) {
			return i, true
		}
	}
	return 0, false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

func (o *orders) addToCart(args addToCartArgs) (string, map[string]any) {
	var added []string
	for _, name := range args.Items {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
		it, ok := o.catalog.ByKey(key)
		if !ok {
			// Fall back to fuzzy matching for references like "fries".
			if idx, found := o.matchItem(name); found {
				it = o.catalog.At(idx)
				ok = true
			}
		}
		if !ok {
			continue
		}
		o.cart = append(o.cart, it)
		added = append(added, it.Name)
	}
	return "cart_update", map[string]any{
		"cart":  o.cart,
		"added": added,
	}
}
