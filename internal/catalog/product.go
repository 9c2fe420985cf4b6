package catalog

// Product товар каталога. Имена JSON полей совпадают с DummyJSON,
// поэтому этот же тип используется и в снапшотах корзины/избранного.
type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int      `json:"stock"`
	Category           string   `json:"category"`
	Brand              string   `json:"brand,omitempty"`
	Thumbnail          string   `json:"thumbnail"`
	Images             []string `json:"images,omitempty"`
}

// normalize подставляет первую картинку, если thumbnail пустой
func (p Product) normalize() Product {
	if p.Thumbnail == "" && len(p.Images) > 0 {
		p.Thumbnail = p.Images[0]
	}
	return p
}

// ProductPage одна страница выдачи /products или /products/search
type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// ListParams параметры запроса страницы.
// Query после trim непустой -> полнотекстовый поиск, иначе обычная пагинация.
type ListParams struct {
	Query string
	Limit int
	Skip  int
}
