package controller

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/pkg/chunker"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	UploadDocument(ctx *fiber.Ctx) error
}

type chatController struct {
	assistantService service.IAssistantService
}

func NewChatController(assistantService service.IAssistantService) IChatController {
	return &chatController{
		assistantService: assistantService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/v1/chat")
	h.Post("", c.SendChat)
	h.Post("/document", c.UploadDocument)
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.assistantService.HandleChat(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) UploadDocument(ctx *fiber.Ctx) error {
	userId, err := strconv.ParseInt(ctx.FormValue("user_id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "user_id is required")
	}
	chatId, err := strconv.ParseInt(ctx.FormValue("chat_id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "chat_id is required")
	}
	caption := ctx.FormValue("caption")

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !chunker.IsSupportedType(fileType) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported file type: "+fileType)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unable to read file")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unable to read file")
	}

	res, err := c.assistantService.HandleDocument(ctx.Context(), userId, chatId, caption, content, fileHeader.Filename, fileType)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success upload document", res))
}
