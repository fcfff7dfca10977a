package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetPartnerAd creates or replaces the ad of ad.UserID. The ad always goes
// back to PENDING_REVIEW, any previous review is discarded. The stored ad is
// returned.
func (ms *MongoStorage) SetPartnerAd(ad *PartnerAd) (*PartnerAd, error) {
	if ad == nil || ad.UserID == "" {
		return nil, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	now := time.Now()
	filter := bson.M{"userId": ad.UserID}
	update := bson.M{
		"$set": bson.M{
			"serverName":    ad.ServerName,
			"serverAddress": ad.ServerAddress,
			"description":   ad.Description,
			"bannerUrl":     ad.BannerURL,
			"websiteUrl":    ad.WebsiteURL,
			"status":        AdStatusPendingReview,
			"updatedAt":     now,
		},
		"$unset": bson.M{
			"reviewNote": "",
			"reviewedBy": "",
		},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID(),
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	stored := &PartnerAd{}
	err := ms.partnerAds.FindOneAndUpdate(ctx, filter, update, opts).Decode(stored)
	if duplicateKeyOn(err, "userId") {
		// a concurrent first submission inserted the ad, update it instead
		err = ms.partnerAds.FindOneAndUpdate(ctx, filter, update, opts).Decode(stored)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert partner ad: %w", err)
	}
	return stored, nil
}

// PartnerAd returns the ad with the given ID.
func (ms *MongoStorage) PartnerAd(id primitive.ObjectID) (*PartnerAd, error) {
	return ms.findPartnerAd(bson.M{"_id": id})
}

// PartnerAdByUser returns the ad owned by the given user.
func (ms *MongoStorage) PartnerAdByUser(userID string) (*PartnerAd, error) {
	return ms.findPartnerAd(bson.M{"userId": userID})
}

func (ms *MongoStorage) findPartnerAd(filter bson.M) (*PartnerAd, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	ad := &PartnerAd{}
	if err := ms.partnerAds.FindOne(ctx, filter).Decode(ad); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get partner ad: %w", err)
	}
	return ad, nil
}

// ReviewPartnerAd sets the review outcome of an ad. Only APPROVED and
// REJECTED are accepted as the new status.
func (ms *MongoStorage) ReviewPartnerAd(id primitive.ObjectID, status AdStatus, reviewer, note string) (*PartnerAd, error) {
	if status != AdStatusApproved && status != AdStatusRejected {
		return nil, ErrInvalidData
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":     status,
		"reviewedBy": reviewer,
		"reviewNote": note,
		"updatedAt":  time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	ad := &PartnerAd{}
	if err := ms.partnerAds.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(ad); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to review partner ad: %w", err)
	}
	return ad, nil
}

// PartnerAds returns the ads, optionally filtered by status, oldest update
// first so the review queue is served in order.
func (ms *MongoStorage) PartnerAds(status *AdStatus) ([]PartnerAd, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if status != nil {
		filter["status"] = *status
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}})
	ads, err := findAll[PartnerAd](ctx, ms.partnerAds, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner ads: %w", err)
	}
	return ads, nil
}
