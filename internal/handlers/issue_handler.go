package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/opendatahq/issues-backend/internal/directory"
	"github.com/opendatahq/issues-backend/internal/dto"
	"github.com/opendatahq/issues-backend/internal/middleware"
	"github.com/opendatahq/issues-backend/internal/models"
	"github.com/opendatahq/issues-backend/internal/services"
)

type IssueHandler struct {
	issueService  *services.IssueService
	searchService *services.SearchService
	dir           *directory.Directory
}

func NewIssueHandler(issueService *services.IssueService, searchService *services.SearchService, dir *directory.Directory) *IssueHandler {
	return &IssueHandler{
		issueService:  issueService,
		searchService: searchService,
		dir:           dir,
	}
}

func issueNumber(c *fiber.Ctx) (int, error) {
	number, err := strconv.Atoi(c.Params("number"))
	if err != nil || number < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid issue number")
	}
	return number, nil
}

func (h *IssueHandler) Create(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	issue, err := h.issueService.Create(c.UserContext(), userID, c.Params("dataset_id"), &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(issue)
}

func (h *IssueHandler) Show(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	detail, err := h.issueService.Show(c.UserContext(), userID, c.Params("dataset_id"), number)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(detail)
}

func (h *IssueHandler) Update(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	var req dto.UpdateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	issue, err := h.issueService.Update(c.UserContext(), userID, c.Params("dataset_id"), number, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(issue)
}

func (h *IssueHandler) Delete(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	if err := h.issueService.Delete(c.UserContext(), userID, c.Params("dataset_id"), number); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Issue deleted"})
}

func (h *IssueHandler) CreateComment(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}
	number, err := issueNumber(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid issue number",
		})
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	comment, err := h.issueService.CreateComment(c.UserContext(), userID, c.Params("dataset_id"), number, &req)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// canModerateScope decides whether the actor may request non-default
// visibility or abuse filters for the given search scope.
func (h *IssueHandler) canModerateScope(ctx context.Context, userID uuid.UUID, datasetRef, orgRef string) (bool, error) {
	if datasetRef != "" {
		dataset, err := h.dir.Dataset(ctx, datasetRef)
		if err != nil {
			return false, err
		}
		return h.dir.CanUpdateDataset(ctx, userID, dataset)
	}
	if orgRef != "" {
		org, err := h.dir.Organization(ctx, orgRef)
		if err != nil {
			return false, err
		}
		return h.dir.CanUpdateOrganization(ctx, userID, org.ID)
	}
	return h.dir.IsSysadmin(ctx, userID)
}

// SearchIssues lists issues with filtering, sorting and pagination.
// Non-moderators always get the visible slice, whatever they asked for.
func (h *IssueHandler) SearchIssues(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	if offset < 0 {
		offset = 0
	}

	filter := services.IssueFilter{
		DatasetRef:      c.Query("dataset_id"),
		OrganizationRef: c.Query("organization_id"),
		IncludeSubOrgs:  c.QueryBool("include_sub_organizations"),
		Status:          models.IssueStatus(c.Query("status")),
		Q:               c.Query("q"),
		Sort:            services.IssueSort(c.Query("sort")),
		Offset:          offset,
		Limit:           limit,
	}

	canModerate, err := h.canModerateScope(c.UserContext(), userID, filter.DatasetRef, filter.OrganizationRef)
	if err != nil {
		return serviceError(c, err)
	}
	if canModerate {
		filter.Visibility = models.Visibility(c.Query("visibility"))
		filter.AbuseStatus = models.AbuseStatus(c.Query("abuse_status"))
	} else {
		filter.Visibility = models.VisibilityVisible
	}

	results, total, err := h.searchService.SearchIssues(c.UserContext(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SearchResponse{Count: total, Results: results})
}

// SearchComments is the moderation listing of comments, org scoped.
func (h *IssueHandler) SearchComments(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "0"))
	if offset < 0 {
		offset = 0
	}

	filter := services.CommentFilter{
		OrganizationRef: c.Query("organization_id"),
		OnlyHidden:      c.QueryBool("only_hidden"),
		Offset:          offset,
		Limit:           limit,
	}

	canModerate, err := h.canModerateScope(c.UserContext(), userID, "", filter.OrganizationRef)
	if err != nil {
		return serviceError(c, err)
	}
	if canModerate {
		filter.Visibility = models.Visibility(c.Query("visibility"))
	} else {
		if filter.OnlyHidden {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "not authorized",
			})
		}
		// Non-moderators only ever see the visible slice.
		filter.Visibility = models.VisibilityVisible
	}

	results, total, err := h.searchService.SearchComments(c.UserContext(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SearchResponse{Count: total, Results: results})
}
