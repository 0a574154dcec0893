package dto

type CreateBlogDTO struct {
	Title   string `json:"title" form:"title" binding:"required"`
	Content string `json:"content" form:"content" binding:"required"`
}

type UpdateBlogDTO struct {
	Title   *string `json:"title" form:"title"`
	Content *string `json:"content" form:"content"`
}
