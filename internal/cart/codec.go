package cart

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmeshcher/foodcart/internal/model"
)

// ErrCorruptLedger возвращается, если сохранённое состояние корзины нельзя восстановить.
var ErrCorruptLedger = errors.New("corrupt ledger state")

type ledgerState struct {
	Items       []model.LineItem     `json:"items"`
	VoucherCode string               `json:"voucher_code,omitempty"`
	Note        string               `json:"note,omitempty"`
	Window      model.DeliveryWindow `json:"delivery_window"`
}

// Encode сериализует корзину. Сохраняется только код ваучера: сам ваучер
// перечитывается из хранилища при восстановлении.
func Encode(l *Ledger) ([]byte, error) {
	data, err := json.Marshal(ledgerState{
		Items:       l.items,
		VoucherCode: l.voucherCode,
		Note:        l.note,
		Window:      l.window,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ledger: %w", err)
	}
	return data, nil
}

// Decode восстанавливает корзину. При повреждённых данных возвращает пустую
// корзину вместе с ErrCorruptLedger: вызывающий продолжает работу с пустой корзиной.
func Decode(data []byte) (*Ledger, error) {
	var st ledgerState
	if err := json.Unmarshal(data, &st); err != nil {
		return New(), fmt.Errorf("%w: %v", ErrCorruptLedger, err)
	}

	seen := make(map[string]struct{}, len(st.Items))
	for _, it := range st.Items {
		if it.ProductID == "" || it.Quantity < 1 || it.UnitPrice.IsNegative() {
			return New(), fmt.Errorf("%w: bad line item %q", ErrCorruptLedger, it.ProductID)
		}
		if _, dup := seen[it.ProductID]; dup {
			return New(), fmt.Errorf("%w: duplicate line item %q", ErrCorruptLedger, it.ProductID)
		}
		seen[it.ProductID] = struct{}{}
	}

	return &Ledger{
		items:       st.Items,
		voucherCode: st.VoucherCode,
		note:        st.Note,
		window:      st.Window,
	}, nil
}
