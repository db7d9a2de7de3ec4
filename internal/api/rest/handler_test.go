package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SkeletronCoreSkulls/apes2/internal/api/rest"
	"github.com/SkeletronCoreSkulls/apes2/internal/checkout"
	"github.com/SkeletronCoreSkulls/apes2/internal/domain"
	"github.com/SkeletronCoreSkulls/apes2/internal/logger"
	"github.com/SkeletronCoreSkulls/apes2/internal/minter"
	"github.com/SkeletronCoreSkulls/apes2/internal/mocks"
	"github.com/SkeletronCoreSkulls/apes2/internal/payment"
	"github.com/SkeletronCoreSkulls/apes2/internal/store"
	"github.com/SkeletronCoreSkulls/apes2/internal/x402"
)

const (
	testResource   = "nft-mint"
	testAsset      = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	testTreasury   = "0x1111111111111111111111111111111111111111"
	testPayer      = "0x2222222222222222222222222222222222222222"
	testTxHash     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testMintTxHash = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type testHandlerMocks struct {
	ctrl       *gomock.Controller
	reader     *mocks.MockReader
	dispatcher *mocks.MockDispatcher
	router     *gin.Engine
}

func setupTest(t *testing.T) *testHandlerMocks {
	ctrl := gomock.NewController(t)
	mockReader := mocks.NewMockReader(ctrl)
	mockDispatcher := mocks.NewMockDispatcher(ctrl)

	requirement := payment.Requirement{
		AssetAddress:    testAsset,
		TreasuryAddress: testTreasury,
		MinAmount:       big.NewInt(1000000),
	}
	service := checkout.NewService(
		payment.NewVerifier(mockReader, requirement),
		payment.NewDiscovery(mockReader, requirement, payment.DiscoveryConfig{LookbackBlocks: 1000}),
		store.NewMemoryStore(),
		mockDispatcher,
		5*time.Second,
	)

	document := x402.BuildPaymentRequired(x402.Offer{
		Network:           "eip155:8453",
		MaxAmountRequired: "1000000",
		Resource:          testResource,
		PayTo:             testTreasury,
		MaxTimeoutSeconds: 60,
		Asset:             testAsset,
		AssetSymbol:       "USDC",
	})

	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(service, document, testResource))

	return &testHandlerMocks{
		ctrl:       ctrl,
		reader:     mockReader,
		dispatcher: mockDispatcher,
		router:     router,
	}
}

func tearDownTest(tm *testHandlerMocks) {
	tm.ctrl.Finish()
}

func (tm *testHandlerMocks) postMint(t *testing.T, body any) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mint", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)
	return w
}

func (tm *testHandlerMocks) expectValidPayment(txHash string) {
	tm.reader.EXPECT().
		TransactionOutcome(gomock.Any(), txHash).
		Return(&domain.TransactionOutcome{
			TxHash:    txHash,
			Finalized: true,
			Success:   true,
			Events: []domain.TransferEvent{{
				Asset:  testAsset,
				From:   testPayer,
				To:     testTreasury,
				Value:  big.NewInt(1000000),
				TxHash: txHash,
			}},
		}, nil)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthCheck(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetPaymentRequirements(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mint", nil)
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var doc x402.PaymentRequired
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, 1, doc.X402Version)
	require.Len(t, doc.Accepts, 1)
	assert.Equal(t, testResource, doc.Accepts[0].Resource)
	assert.Equal(t, "1000000", doc.Accepts[0].MaxAmountRequired)
}

func TestConfirmPayment_Success(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.expectValidPayment(testTxHash)
	tm.dispatcher.EXPECT().
		Dispatch(gomock.Any(), testPayer, uint64(1), gomock.Any()).
		Return(&domain.MintOutcome{Recipient: testPayer, Quantity: 1, TxHash: testMintTxHash}, nil)

	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})

	assert.Equal(t, http.StatusOK, w.Code)

	var body rest.ConfirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, testPayer, body.MintedTo)
	assert.Equal(t, testMintTxHash, body.NftTxHash)
}

func TestConfirmPayment_Replay(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.expectValidPayment(testTxHash)
	tm.dispatcher.EXPECT().
		Dispatch(gomock.Any(), testPayer, uint64(1), gomock.Any()).
		Return(&domain.MintOutcome{Recipient: testPayer, Quantity: 1, TxHash: testMintTxHash}, nil)

	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})
	require.Equal(t, http.StatusOK, w.Code)

	tm.expectValidPayment(testTxHash)
	w = tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})

	assert.Equal(t, http.StatusOK, w.Code)

	var body rest.ConfirmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	assert.Equal(t, "Already processed", body.Note)
	assert.Equal(t, testTxHash, body.TxHash)
}

func TestConfirmPayment_UnknownResourceSkipsChainAccess(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	// No reader or dispatcher expectations: the resource check rejects
	// before any chain access
	w := tm.postMint(t, gin.H{"resource": "someone-elses-offer", "txHash": testTxHash})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_resource", errorCode(t, w))
}

func TestConfirmPayment_MissingProofAndPayer(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	w := tm.postMint(t, gin.H{"resource": testResource})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", errorCode(t, w))
}

func TestConfirmPayment_PaymentNotFound(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.reader.EXPECT().
		TransactionOutcome(gomock.Any(), testTxHash).
		Return(nil, domain.ErrTransactionNotFound)

	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "payment_not_found", errorCode(t, w))
}

func TestConfirmPayment_InsufficientAmount(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.reader.EXPECT().
		TransactionOutcome(gomock.Any(), testTxHash).
		Return(&domain.TransactionOutcome{
			TxHash:    testTxHash,
			Finalized: true,
			Success:   true,
			Events: []domain.TransferEvent{{
				Asset:  testAsset,
				From:   testPayer,
				To:     testTreasury,
				Value:  big.NewInt(1),
				TxHash: testTxHash,
			}},
		}, nil)

	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment_invalid", errorCode(t, w))
}

func TestConfirmPayment_AuthorityMismatch(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	tm.expectValidPayment(testTxHash)
	tm.dispatcher.EXPECT().
		Dispatch(gomock.Any(), testPayer, uint64(1), gomock.Any()).
		Return(nil, &domain.AuthorityMismatchError{
			Expected: "0x9999999999999999999999999999999999999999",
			Actual:   testPayer,
		})

	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "authority_mismatch", errorCode(t, w))
}

func TestConfirmPayment_MintInProgress(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	release := make(chan struct{})
	started := make(chan struct{})
	tm.expectValidPayment(testTxHash)
	tm.dispatcher.EXPECT().
		Dispatch(gomock.Any(), testPayer, uint64(1), gomock.Any()).
		DoAndReturn(func(_ context.Context, recipient string, quantity uint64, _ minter.BroadcastHook) (*domain.MintOutcome, error) {
			close(started)
			<-release
			return &domain.MintOutcome{Recipient: recipient, Quantity: quantity, TxHash: testMintTxHash}, nil
		})

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})
	}()
	<-started

	tm.expectValidPayment(testTxHash)
	w := tm.postMint(t, gin.H{"resource": testResource, "txHash": testTxHash})
	close(release)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "mint_in_progress", errorCode(t, w))
	assert.Equal(t, http.StatusOK, (<-firstDone).Code)
}

func TestConfirmPayment_Misconfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockReader := mocks.NewMockReader(ctrl)

	requirement := payment.Requirement{
		AssetAddress:    testAsset,
		TreasuryAddress: testTreasury,
		MinAmount:       big.NewInt(1000000),
	}
	service := checkout.NewService(
		payment.NewVerifier(mockReader, requirement),
		payment.NewDiscovery(mockReader, requirement, payment.DiscoveryConfig{LookbackBlocks: 1000}),
		store.NewMemoryStore(),
		nil,
		5*time.Second,
	)
	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(service, x402.PaymentRequired{}, testResource))

	raw, _ := json.Marshal(gin.H{"resource": testResource, "txHash": testTxHash})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mint", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server_misconfigured", errorCode(t, w))
}

func TestMethodNotAllowed(t *testing.T) {
	tm := setupTest(t)
	defer tearDownTest(tm)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/mint", nil)
	w := httptest.NewRecorder()
	tm.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}
