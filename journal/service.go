package journal

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Service exposes the journal over HTTP and serves staged upgrade
// artifacts under /files/ for the nodes to fetch.
type Service struct {
	engine     *gin.Engine
	journal    *Journal
	listenAddr string
}

func NewService(listenAddr string, journal *Journal, stageDir string) *Service {
	r := gin.Default()
	s := &Service{
		engine:     r,
		journal:    journal,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getProbes", s.handleGetProbes)
	s.engine.POST("/getConvergence", s.handleGetConvergence)
	if stageDir != "" {
		s.engine.Static("/files", stageDir)
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type ProposalInfo struct {
	Proposal Proposal `json:"proposal"`
	Votes    []Vote   `json:"votes"`
}

type GetProposalsReq struct {
	ChainId    string `json:"chainId"`
	ProposalId uint64 `json:"proposalId"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []ProposalInfo `json:"proposals"`
	Total     uint64         `json:"total"`
}

func pageSize(n int) int {
	if n <= 0 || n > 1000 {
		return 100
	}
	return n
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]ProposalInfo, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != 0 {
		if requestData.ChainId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chainId is required with proposalId"})
			return
		}
		proposal, err := s.journal.getProposal(requestData.ChainId, requestData.ProposalId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		info, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	var (
		proposals []Proposal
		total     uint64
		err       error
	)
	if requestData.ChainId != "" {
		proposals, total, err = s.journal.getProposalsByChain(requestData.ChainId, requestData.Page, pageSize(requestData.PageSize))
	} else {
		proposals, total, err = s.journal.getProposals(requestData.Page, pageSize(requestData.PageSize))
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Total = total
	for _, proposal := range proposals {
		info, err := s.proposalInfo(proposal)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, info)
	}
	c.JSON(http.StatusOK, response)
}

func (s *Service) proposalInfo(p Proposal) (ProposalInfo, error) {
	votes, err := s.journal.getVotesByProposal(p.ChainId, p.ProposalId)
	if err != nil {
		return ProposalInfo{}, err
	}
	return ProposalInfo{Proposal: p, Votes: votes}, nil
}

type GetProbesReq struct {
	Address  string `json:"address"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetProbesResponse struct {
	Probes []Probe `json:"probes"`
	Total  uint64  `json:"total"`
}

func (s *Service) handleGetProbes(c *gin.Context) {
	var requestData GetProbesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return
	}
	probes, total, err := s.journal.getProbesByAddress(requestData.Address, requestData.Page, pageSize(requestData.PageSize))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if probes == nil {
		probes = make([]Probe, 0)
	}
	c.JSON(http.StatusOK, GetProbesResponse{Probes: probes, Total: total})
}

type GetConvergenceReq struct {
	ChainId    string `json:"chainId"`
	ProposalId uint64 `json:"proposalId"`
}

type GetConvergenceResponse struct {
	Nodes []Convergence `json:"nodes"`
}

func (s *Service) handleGetConvergence(c *gin.Context) {
	var requestData GetConvergenceReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.ChainId == "" || requestData.ProposalId == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chainId and proposalId are required"})
		return
	}
	rows, err := s.journal.getConvergenceByProposal(requestData.ChainId, requestData.ProposalId)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetConvergenceResponse{Nodes: rows})
}
