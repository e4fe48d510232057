package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/foodcart/internal/model"
)

// UnavailableError возвращается, если повторить заказ нельзя: часть товаров
// исчезла из каталога или недоступна.
type UnavailableError struct {
	ProductIDs []string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("products unavailable for reorder: %s", strings.Join(e.ProductIDs, ", "))
}

// PriceChange описывает расхождение цены товара между прошлым заказом и каталогом.
type PriceChange struct {
	ProductID string
	Name      string
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
}

// ReorderPlan: результат сверки прошлого заказа с каталогом.
type ReorderPlan struct {
	Items        []model.LineItem
	PriceChanges []PriceChange
}

// NeedsConfirmation сообщает, должен ли покупатель подтвердить новые цены.
func (p *ReorderPlan) NeedsConfirmation() bool {
	return len(p.PriceChanges) > 0
}

// Apply заменяет содержимое корзины товарами плана по текущим ценам каталога.
// Ваучер, комментарий и окно доставки сбрасываются вместе с корзиной.
func (p *ReorderPlan) Apply(l *Ledger) {
	l.Clear()
	l.items = append(l.items, p.Items...)
}

// Reconcile сверяет позиции прошлого заказа с текущим каталогом. Если хотя бы один
// товар отсутствует или недоступен, план не строится.
func Reconcile(prior []model.OrderItem, catalog map[string]model.Product) (*ReorderPlan, error) {
	var missing []string
	for _, it := range prior {
		p, ok := catalog[it.ProductID]
		if !ok || !p.IsAvailable {
			missing = append(missing, it.ProductID)
		}
	}
	if len(missing) > 0 {
		return nil, &UnavailableError{ProductIDs: missing}
	}

	plan := &ReorderPlan{}
	index := make(map[string]int, len(prior))
	for _, it := range prior {
		p := catalog[it.ProductID]

		if i, ok := index[it.ProductID]; ok {
			plan.Items[i].Quantity += it.Quantity
			continue
		}
		if it.Quantity < 1 {
			continue
		}

		if !p.Price.Equal(it.UnitPrice) {
			plan.PriceChanges = append(plan.PriceChanges, PriceChange{
				ProductID: it.ProductID,
				Name:      p.Name,
				OldPrice:  it.UnitPrice,
				NewPrice:  p.Price,
			})
		}

		index[it.ProductID] = len(plan.Items)
		plan.Items = append(plan.Items, model.LineItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  it.Quantity,
		})
	}

	return plan, nil
}
