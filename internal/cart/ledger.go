// Package cart содержит корзину покупателя и расчёт её итогов.
package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/foodcart/internal/model"
	"github.com/mmeshcher/foodcart/internal/voucher"
)

// ErrInvalidArgument возвращается при операции с пустым идентификатором товара.
var ErrInvalidArgument = errors.New("invalid argument: empty product id")

// Pricing содержит всё, что нужно для пересчёта итогов: сборы и контекст проверки ваучера.
type Pricing struct {
	DeliveryFee  decimal.Decimal
	PackagingFee decimal.Decimal
	Evaluator    *voucher.Evaluator
	Customer     model.Customer
}

// Totals: производные суммы корзины.
type Totals struct {
	Gross        decimal.Decimal
	Discount     decimal.Decimal
	DeliveryFee  decimal.Decimal
	PackagingFee decimal.Decimal
	Total        decimal.Decimal
}

// Notice сообщает о молчаливой корректировке корзины: ваучер снят после изменения её состава.
type Notice struct {
	VoucherCode string
	Reason      voucher.Reason
}

func (n *Notice) String() string {
	return fmt.Sprintf("voucher %s was removed: %s", n.VoucherCode, n.Reason)
}

// Ledger: корзина покупателя. Итоги не пересчитываются автоматически:
// после изменений вызывающий обязан вызвать RecomputeTotals.
type Ledger struct {
	items       []model.LineItem
	voucher     *model.Voucher
	voucherCode string
	note        string
	window      model.DeliveryWindow
	totals      Totals
}

// New создаёт пустую корзину.
func New() *Ledger {
	return &Ledger{}
}

// AddItem увеличивает количество товара на единицу или добавляет новую строку
// с зафиксированной ценой unitPrice.
func (l *Ledger) AddItem(productID, name string, unitPrice decimal.Decimal) error {
	if productID == "" {
		return ErrInvalidArgument
	}

	if i := l.indexOf(productID); i >= 0 {
		l.items[i].Quantity++
		return nil
	}

	l.items = append(l.items, model.LineItem{
		ProductID: productID,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  1,
	})
	return nil
}

// RemoveItem удаляет строку товара, если она есть.
func (l *Ledger) RemoveItem(productID string) error {
	if productID == "" {
		return ErrInvalidArgument
	}

	if i := l.indexOf(productID); i >= 0 {
		l.items = append(l.items[:i], l.items[i+1:]...)
	}
	return nil
}

// SetQuantity меняет количество существующей строки. Количество ≤ 0 удаляет строку.
// Новые строки не создаются.
func (l *Ledger) SetQuantity(productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidArgument
	}
	if quantity <= 0 {
		return l.RemoveItem(productID)
	}

	if i := l.indexOf(productID); i >= 0 {
		l.items[i].Quantity = quantity
	}
	return nil
}

// Clear возвращает корзину в пустое состояние.
func (l *Ledger) Clear() {
	l.items = nil
	l.voucher = nil
	l.voucherCode = ""
	l.note = ""
	l.window = model.DeliveryWindow{}
	l.totals = Totals{}
}

// SetNote сохраняет комментарий к доставке.
func (l *Ledger) SetNote(note string) {
	l.note = note
}

// SetDeliveryWindow сохраняет выбранные дату и интервал доставки.
func (l *Ledger) SetDeliveryWindow(w model.DeliveryWindow) {
	l.window = w
}

// ApplyVoucher проверяет ваучер и при успехе прикрепляет его вместо текущего.
// При отказе корзина не меняется, возвращается *voucher.RejectionError.
func (l *Ledger) ApplyVoucher(v *model.Voucher, p Pricing) (Totals, error) {
	gross := l.gross()
	if err := p.evaluator().Validate(v, p.Customer, orderValue(gross, p)); err != nil {
		return l.totals, err
	}

	l.voucher = v
	l.voucherCode = v.Code
	totals, _ := l.RecomputeTotals(p)
	return totals, nil
}

// AttachVoucher прикрепляет ваучер без проверки. Используется при восстановлении
// корзины; проверка произойдёт в ближайшем RecomputeTotals.
func (l *Ledger) AttachVoucher(v *model.Voucher) {
	l.voucher = v
	if v != nil {
		l.voucherCode = v.Code
	}
}

// RemoveVoucher снимает ваучер.
func (l *Ledger) RemoveVoucher() {
	l.voucher = nil
	l.voucherCode = ""
}

// RecomputeTotals пересчитывает итоги и повторно проверяет прикреплённый ваучер.
// Если ваучер больше не применим, он снимается и возвращается Notice.
// Повторный вызов с тем же состоянием даёт тот же результат.
func (l *Ledger) RecomputeTotals(p Pricing) (Totals, *Notice) {
	gross := l.gross()

	var notice *Notice
	if l.voucher != nil {
		if err := p.evaluator().Validate(l.voucher, p.Customer, orderValue(gross, p)); err != nil {
			var rejection *voucher.RejectionError
			if errors.As(err, &rejection) {
				notice = &Notice{VoucherCode: l.voucher.Code, Reason: rejection.Reason}
				l.voucher = nil
				l.voucherCode = ""
			}
		}
	}

	discount := voucher.ComputeDiscount(l.voucher, gross)
	total := decimal.Max(decimal.Zero, gross.Sub(discount)).Add(p.DeliveryFee).Add(p.PackagingFee)

	l.totals = Totals{
		Gross:        gross,
		Discount:     discount,
		DeliveryFee:  p.DeliveryFee,
		PackagingFee: p.PackagingFee,
		Total:        total.Round(2),
	}
	return l.totals, notice
}

// Items возвращает копию строк корзины в порядке добавления.
func (l *Ledger) Items() []model.LineItem {
	out := make([]model.LineItem, len(l.items))
	copy(out, l.items)
	return out
}

// Item возвращает строку корзины по идентификатору товара.
func (l *Ledger) Item(productID string) (model.LineItem, bool) {
	if i := l.indexOf(productID); i >= 0 {
		return l.items[i], true
	}
	return model.LineItem{}, false
}

// IsEmpty сообщает, пуста ли корзина.
func (l *Ledger) IsEmpty() bool {
	return len(l.items) == 0
}

// Voucher возвращает прикреплённый ваучер или nil.
func (l *Ledger) Voucher() *model.Voucher {
	return l.voucher
}

// VoucherCode возвращает код прикреплённого ваучера. После восстановления из
// хранилища код известен раньше, чем сам ваучер.
func (l *Ledger) VoucherCode() string {
	return l.voucherCode
}

// Note возвращает комментарий к доставке.
func (l *Ledger) Note() string {
	return l.note
}

// DeliveryWindow возвращает выбранное окно доставки.
func (l *Ledger) DeliveryWindow() model.DeliveryWindow {
	return l.window
}

// Totals возвращает итоги последнего пересчёта.
func (l *Ledger) Totals() Totals {
	return l.totals
}

func (l *Ledger) gross() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range l.items {
		sum = sum.Add(it.Subtotal())
	}
	return sum.Round(2)
}

func (l *Ledger) indexOf(productID string) int {
	for i := range l.items {
		if l.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func orderValue(gross decimal.Decimal, p Pricing) decimal.Decimal {
	return gross.Add(p.DeliveryFee).Add(p.PackagingFee)
}

func (p Pricing) evaluator() *voucher.Evaluator {
	if p.Evaluator == nil {
		return voucher.New()
	}
	return p.Evaluator
}
